package sweeps

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/status"
)

const backtestJob = "backtest"

const (
	backtestScanPage     = 200
	backtestRecentWindow = 7 * 24 * time.Hour
)

// Backtest re-runs the current evaluator configuration against accounts a
// human already settled, and reports per-evaluator agreement with those
// judgments. A disagreement on a human account is a would-be false positive;
// a settled bot no evaluator flags is a miss. The sweep never transitions
// anything.
type Backtest struct {
	deps Deps
	job  *chunk.Job
}

var _ Sweep = (*Backtest)(nil)

func NewBacktest(deps Deps) *Backtest {
	return &Backtest{
		deps: deps,
		job:  deps.newJob(backtestJob, backtestRecentWindow),
	}
}

func (s *Backtest) Name() string {
	return backtestJob
}

func (s *Backtest) Register(d *chunk.Dispatcher) {
	d.Register(backtestJob, s.run)
}

func (s *Backtest) Kickoff(ctx context.Context) error {
	return kickoff(ctx, s.job, s.deps.Scheduler)
}

func (s *Backtest) run(ctx context.Context, cont chunk.Continuation) error {
	if cont.Phase() != phaseProcess {
		if err := s.collect(ctx); err != nil {
			return err
		}
		cont.SetPhase(phaseProcess)
	}
	_, err := s.job.RunOnce(ctx, cont, s.processAccount, s.finalize)
	return err
}

func (s *Backtest) collect(ctx context.Context) error {
	eng := s.deps.Engine
	var items []chunk.Item
	cursor := ""
	for {
		recs, next, err := eng.Records.Scan(ctx, cursor, backtestScanPage)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if !rec.Status.Settled() {
				continue
			}
			items = append(items, chunk.Item{Member: rec.Account, Score: float64(len(items))})
		}
		if next == "" {
			break
		}
		cursor = next
	}
	s.deps.logger().Info("backtest sweep collected settled accounts", "count", len(items))
	if len(items) == 0 {
		return nil
	}
	return s.job.Worklist.Add(ctx, items...)
}

func (s *Backtest) processAccount(ctx context.Context, account string, cont chunk.Continuation) error {
	eng := s.deps.Engine
	rec, err := eng.Records.Get(ctx, account)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	expected := status.Effective(rec)
	if expected == status.InterpretationUnknown {
		return nil
	}

	out, err := eng.EvaluateAccount(ctx, account)
	if errors.Is(err, platform.ErrAccountGone) {
		cont.AddInt("unreachable", 1)
		return nil
	}
	if err != nil {
		return err
	}

	if len(out.Results) == 0 {
		if expected == status.InterpretationBot {
			cont.AddInt("missed", 1)
		}
		return nil
	}
	for _, res := range out.Results {
		if expected == status.InterpretationBot {
			cont.AddInt("agree/"+res.Evaluator, 1)
		} else {
			cont.AddInt("disagree/"+res.Evaluator, 1)
		}
	}
	return nil
}

func (s *Backtest) finalize(ctx context.Context, cont chunk.Continuation) error {
	var lines []string
	for key := range cont {
		if strings.HasPrefix(key, "agree/") || strings.HasPrefix(key, "disagree/") {
			lines = append(lines, fmt.Sprintf("%s: %d", key, cont.GetInt(key)))
		}
	}
	sort.Strings(lines)
	lines = append(lines,
		fmt.Sprintf("settled accounts checked: %d", cont.GetInt("processed")),
		fmt.Sprintf("settled bots with no hit: %d", cont.GetInt("missed")),
		fmt.Sprintf("unreachable: %d", cont.GetInt("unreachable")),
	)
	body := strings.Join(lines, "\n")
	s.deps.logger().Info("backtest sweep complete", "summary", body)
	return s.deps.Engine.Notifier.SendReport(ctx, "Evaluator backtest", body)
}
