package sweeps

import (
	"context"
	"errors"
	"time"

	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/platform"
)

const karmaFarmJob = "karmafarm"

// defaults, overridable per-run through the karmafarm config module
const (
	karmaFarmDefaultLimit = 500
	karmaFarmRecentWindow = 6 * time.Hour
)

// KarmaFarm proactively evaluates accounts with recent activity in the
// watched communities, instead of waiting for a report. Accounts the full
// evaluator pipeline flags go through the usual verdict path: pending record
// for review, or auto-ban when an evaluator clears its bar.
type KarmaFarm struct {
	deps Deps
	job  *chunk.Job
}

var _ Sweep = (*KarmaFarm)(nil)

func NewKarmaFarm(deps Deps) *KarmaFarm {
	return &KarmaFarm{
		deps: deps,
		job:  deps.newJob(karmaFarmJob, karmaFarmRecentWindow),
	}
}

func (s *KarmaFarm) Name() string {
	return karmaFarmJob
}

func (s *KarmaFarm) Register(d *chunk.Dispatcher) {
	d.Register(karmaFarmJob, s.run)
}

func (s *KarmaFarm) Kickoff(ctx context.Context) error {
	return kickoff(ctx, s.job, s.deps.Scheduler)
}

func (s *KarmaFarm) run(ctx context.Context, cont chunk.Continuation) error {
	if cont.Phase() != phaseProcess {
		if err := s.collect(ctx); err != nil {
			return err
		}
		cont.SetPhase(phaseProcess)
	}
	_, err := s.job.RunOnce(ctx, cont, s.processAccount, s.finalize)
	return err
}

func (s *KarmaFarm) collect(ctx context.Context) error {
	eng := s.deps.Engine
	vars := eng.Config.Current()
	communities := vars.GetStringList("karmafarm", "communities")
	if len(communities) == 0 {
		communities = []string{eng.Community}
	}
	limit := vars.GetInt("karmafarm", "limit", karmaFarmDefaultLimit)

	var items []chunk.Item
	seen := make(map[string]bool)
	for _, community := range communities {
		accounts, err := eng.Platform.RecentAccounts(ctx, community, limit)
		if err != nil {
			return err
		}
		for i, account := range accounts {
			if seen[account] {
				continue
			}
			seen[account] = true
			items = append(items, chunk.Item{Member: account, Score: float64(i)})
		}
	}
	s.deps.logger().Info("karmafarm sweep collected candidates", "count", len(items))
	if len(items) == 0 {
		return nil
	}
	return s.job.Worklist.Add(ctx, items...)
}

func (s *KarmaFarm) processAccount(ctx context.Context, account string, cont chunk.Continuation) error {
	eng := s.deps.Engine
	out, err := eng.EvaluateAccount(ctx, account)
	if err != nil {
		if errors.Is(err, platform.ErrAccountGone) {
			return nil
		}
		return err
	}
	if out.Verdict == engine.VerdictNone {
		return nil
	}
	cont.AddInt("flagged", 1)
	if out.Verdict == engine.VerdictAutoBan {
		cont.AddInt("banned", 1)
	}
	ref, err := s.deps.trackingRef(ctx, account)
	if err != nil {
		return err
	}
	return eng.ApplyOutcome(ctx, out, ref)
}

func (s *KarmaFarm) finalize(ctx context.Context, cont chunk.Continuation) error {
	s.deps.logger().Info("karmafarm sweep complete",
		"processed", cont.GetInt("processed"),
		"flagged", cont.GetInt("flagged"),
		"banned", cont.GetInt("banned"),
	)
	return nil
}
