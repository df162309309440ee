package sweeps

import (
	"context"
	"errors"
	"time"

	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/status"
)

const cleanupJob = "cleanup"

// RecheckWorklist is the worklist name shared between the transition path's
// scheduler adapter and the cleanup sweep that consumes it.
const RecheckWorklist = "recheck"

const (
	cleanupRecentWindow   = time.Hour
	cleanupCollectBatch   = 200
	cleanupRequeueHorizon = 28 * 24 * time.Hour
)

// RecheckQueue adapts a worklist to the engine's re-check scheduler: items
// are scored by their due time, so the cleanup sweep's collect phase can pop
// exactly the accounts whose horizon has passed.
type RecheckQueue struct {
	wl  chunk.Worklist
	now func() time.Time
}

var _ engine.RecheckScheduler = (*RecheckQueue)(nil)

func NewRecheckQueue(wl chunk.Worklist) *RecheckQueue {
	return &RecheckQueue{wl: wl, now: time.Now}
}

func (q *RecheckQueue) SetClock(now func() time.Time) {
	q.now = now
}

func (q *RecheckQueue) ScheduleRecheck(ctx context.Context, account string, delay time.Duration) error {
	due := q.now().Add(delay)
	return q.wl.Add(ctx, chunk.Item{Member: account, Score: float64(due.Unix())})
}

// Cleanup processes due re-checks: records whose account disappeared get
// tombstoned as retired (deleted) or purged (suspended) with the prior
// settled status preserved, and accounts that came back get their prior
// status restored. Pending records for vanished accounts are dropped
// entirely; there was never a judgment worth keeping.
type Cleanup struct {
	deps     Deps
	job      *chunk.Job
	rechecks chunk.Worklist
}

var _ Sweep = (*Cleanup)(nil)

func NewCleanup(deps Deps) *Cleanup {
	return &Cleanup{
		deps:     deps,
		job:      deps.newJob(cleanupJob, cleanupRecentWindow),
		rechecks: deps.NewWorklist(RecheckWorklist),
	}
}

func (s *Cleanup) Name() string {
	return cleanupJob
}

func (s *Cleanup) Register(d *chunk.Dispatcher) {
	d.Register(cleanupJob, s.run)
}

func (s *Cleanup) Kickoff(ctx context.Context) error {
	return kickoff(ctx, s.job, s.deps.Scheduler)
}

func (s *Cleanup) run(ctx context.Context, cont chunk.Continuation) error {
	if cont.Phase() != phaseProcess {
		if err := s.collect(ctx); err != nil {
			return err
		}
		cont.SetPhase(phaseProcess)
	}
	_, err := s.job.RunOnce(ctx, cont, s.processAccount, s.finalize)
	return err
}

// collect moves due entries off the shared re-check worklist. Entries whose
// horizon has not passed stay queued for a later run.
func (s *Cleanup) collect(ctx context.Context) error {
	nowUnix := float64(s.deps.now().Unix())
	total := 0
	for {
		items, err := s.rechecks.Front(ctx, cleanupCollectBatch)
		if err != nil {
			return err
		}
		var due []chunk.Item
		for _, it := range items {
			if it.Score > nowUnix {
				break
			}
			due = append(due, it)
		}
		if len(due) == 0 {
			break
		}
		if err := s.job.Worklist.Add(ctx, due...); err != nil {
			return err
		}
		members := make([]string, len(due))
		for i, it := range due {
			members[i] = it.Member
		}
		if err := s.rechecks.Remove(ctx, members...); err != nil {
			return err
		}
		total += len(due)
		if len(due) < len(items) || len(items) < cleanupCollectBatch {
			break
		}
	}
	s.deps.logger().Info("cleanup sweep collected due re-checks", "count", total)
	return nil
}

func (s *Cleanup) processAccount(ctx context.Context, account string, cont chunk.Continuation) error {
	eng := s.deps.Engine
	rec, err := eng.Records.Get(ctx, account)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	exists, err := eng.Platform.AccountExists(ctx, account)
	if err != nil {
		return err
	}
	if !exists {
		return s.markUnreachable(ctx, rec, status.StatusRetired, cont)
	}

	summary, err := eng.Platform.AccountSummary(ctx, account)
	switch {
	case errors.Is(err, platform.ErrAccountGone):
		// vanished between the probe and the fetch
		return s.markUnreachable(ctx, rec, status.StatusRetired, cont)
	case err != nil:
		return err
	case summary.Suspended:
		return s.markUnreachable(ctx, rec, status.StatusPurged, cont)
	}

	if rec.Status == status.StatusPurged || rec.Status == status.StatusRetired {
		restored := status.StatusPending
		if rec.PreviousStatus != nil {
			restored = *rec.PreviousStatus
		}
		cont.AddInt("restored", 1)
		_, err := eng.Transition(ctx, engine.TransitionInput{
			Account:        account,
			NewStatus:      restored,
			Operator:       engine.OperatorSystem,
			TrackingPostID: rec.TrackingPostID,
			Reason:         "account reachable again",
		})
		if err != nil {
			return err
		}
		return eng.PurgeAccountCaches(ctx, account)
	}

	// unchanged; keep settled accounts under periodic watch
	if rec.Status.Settled() {
		return eng.Rechecks.ScheduleRecheck(ctx, account, cleanupRequeueHorizon)
	}
	return nil
}

func (s *Cleanup) markUnreachable(ctx context.Context, rec *status.Record, target status.Status, cont chunk.Continuation) error {
	eng := s.deps.Engine
	if rec.Status == status.StatusPurged || rec.Status == status.StatusRetired {
		return nil
	}
	if rec.Status == status.StatusPending {
		cont.AddInt("dropped", 1)
		if err := eng.Records.Delete(ctx, rec.Account); err != nil {
			return err
		}
		if eng.Authoritative {
			return eng.Counters.IncrementBy(ctx, rec.Status, -1)
		}
		return nil
	}
	cont.AddInt(string(target), 1)
	_, err := eng.Transition(ctx, engine.TransitionInput{
		Account:        rec.Account,
		NewStatus:      target,
		Operator:       engine.OperatorSystem,
		TrackingPostID: rec.TrackingPostID,
		Reason:         "account unreachable",
	})
	if err != nil {
		return err
	}
	return eng.PurgeAccountCaches(ctx, rec.Account)
}

func (s *Cleanup) finalize(ctx context.Context, cont chunk.Continuation) error {
	s.deps.logger().Info("cleanup sweep complete",
		"processed", cont.GetInt("processed"),
		"retired", cont.GetInt(string(status.StatusRetired)),
		"purged", cont.GetInt(string(status.StatusPurged)),
		"restored", cont.GetInt("restored"),
		"dropped", cont.GetInt("dropped"),
	)
	return nil
}
