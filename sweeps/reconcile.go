package sweeps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/status"
)

const reconcileJob = "reconcile"

const (
	reconcileScanPage     = 200
	reconcileRecentWindow = 24 * time.Hour
)

// Reconcile recounts records per status and compares against the aggregate
// counters the transition path maintains incrementally. A divergence means a
// missed or doubled increment somewhere; the sweep repairs the counter and
// reports the delta so the bug gets looked at.
type Reconcile struct {
	deps Deps
	job  *chunk.Job
}

var _ Sweep = (*Reconcile)(nil)

func NewReconcile(deps Deps) *Reconcile {
	return &Reconcile{
		deps: deps,
		job:  deps.newJob(reconcileJob, reconcileRecentWindow),
	}
}

func (s *Reconcile) Name() string {
	return reconcileJob
}

func (s *Reconcile) Register(d *chunk.Dispatcher) {
	d.Register(reconcileJob, s.run)
}

func (s *Reconcile) Kickoff(ctx context.Context) error {
	return kickoff(ctx, s.job, s.deps.Scheduler)
}

func (s *Reconcile) run(ctx context.Context, cont chunk.Continuation) error {
	if cont.Phase() != phaseProcess {
		if err := s.collect(ctx); err != nil {
			return err
		}
		cont.SetPhase(phaseProcess)
	}
	_, err := s.job.RunOnce(ctx, cont, s.countAccount, s.finalize)
	return err
}

func (s *Reconcile) collect(ctx context.Context) error {
	eng := s.deps.Engine
	var items []chunk.Item
	cursor := ""
	for {
		recs, next, err := eng.Records.Scan(ctx, cursor, reconcileScanPage)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			items = append(items, chunk.Item{Member: rec.Account, Score: float64(len(items))})
		}
		if next == "" {
			break
		}
		cursor = next
	}
	s.deps.logger().Info("reconcile sweep collected records", "count", len(items))
	if len(items) == 0 {
		return nil
	}
	return s.job.Worklist.Add(ctx, items...)
}

func (s *Reconcile) countAccount(ctx context.Context, account string, cont chunk.Continuation) error {
	rec, err := s.deps.Engine.Records.Get(ctx, account)
	if errors.Is(err, recordstore.ErrNotFound) {
		// deleted mid-sweep
		return nil
	}
	if err != nil {
		return err
	}
	cont.AddInt("status/"+string(rec.Status), 1)
	return nil
}

func (s *Reconcile) finalize(ctx context.Context, cont chunk.Continuation) error {
	eng := s.deps.Engine
	recorded, err := eng.Counters.All(ctx)
	if err != nil {
		return err
	}
	var deltas []string
	for _, st := range status.AllStatuses {
		want := int64(cont.GetInt("status/" + string(st)))
		got := recorded[st]
		if got == want {
			continue
		}
		deltas = append(deltas, fmt.Sprintf("%s: counter %d, records %d", st, got, want))
		if eng.Authoritative {
			if err := eng.Counters.Set(ctx, st, want); err != nil {
				return err
			}
		}
	}
	if len(deltas) == 0 {
		s.deps.logger().Info("reconcile sweep complete, counters consistent",
			"records", cont.GetInt("processed"))
		return nil
	}
	body := strings.Join(deltas, "\n")
	s.deps.logger().Warn("reconcile sweep repaired counters", "deltas", body)
	return eng.Notifier.SendReport(ctx, "Counter reconciliation", body)
}
