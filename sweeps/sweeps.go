// Package sweeps implements the background batch consumers: proactive
// karma-farm detection, accuracy back-testing, regex safety audits, counter
// reconciliation, and re-check cleanup. Every sweep is a chunked job: a
// collect phase fills a persisted worklist, then budgeted process invocations
// drain it, carrying state in the continuation.
package sweeps

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/winnowbot/winnow/cachestore"
	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/recordstore"
)

const (
	phaseCollect = "collect"
	phaseProcess = "process"
)

// Deps is the shared wiring for all sweeps.
type Deps struct {
	Engine    *engine.Engine
	Scheduler chunk.Scheduler
	Cache     cachestore.CacheStore
	Logger    *slog.Logger

	// NewWorklist returns the persisted worklist for a job name.
	NewWorklist func(name string) chunk.Worklist

	// Budget overrides the per-invocation budget for every sweep job;
	// zero uses the chunk default.
	Budget time.Duration
	// Clock is overridable for tests.
	Clock func() time.Time
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) newJob(name string, recentWindow time.Duration) *chunk.Job {
	return &chunk.Job{
		Name:         name,
		Worklist:     d.NewWorklist(name),
		Budget:       d.Budget,
		Scheduler:    d.Scheduler,
		Logger:       d.Logger,
		Cache:        d.Cache,
		RecentWindow: recentWindow,
		Clock:        d.Clock,
	}
}

// trackingRef resolves the tracking post for an account, creating one on the
// authoritative node when the account has no record yet.
func (d Deps) trackingRef(ctx context.Context, account string) (string, error) {
	rec, err := d.Engine.Records.Get(ctx, account)
	if err == nil {
		return rec.TrackingPostID, nil
	}
	if !errors.Is(err, recordstore.ErrNotFound) {
		return "", err
	}
	if !d.Engine.Authoritative {
		return "", nil
	}
	return d.Engine.Platform.CreateTrackingPost(ctx, d.Engine.Community, account)
}

// Sweep is the common surface the daemon wires: handlers registered on the
// dispatcher, kickoffs driven by the scheduler loop's interval timer.
type Sweep interface {
	Name() string
	Register(d *chunk.Dispatcher)
	// Kickoff queues a fresh run, unless one started recently.
	Kickoff(ctx context.Context) error
}

// kickoff is the shared "ran recently" guarded start used by every sweep.
func kickoff(ctx context.Context, job *chunk.Job, sched chunk.Scheduler) error {
	if job.RanRecently(ctx) {
		return nil
	}
	if err := job.MarkRan(ctx); err != nil {
		return err
	}
	cont := chunk.NewContinuation()
	cont.SetPhase(phaseCollect)
	return sched.Schedule(ctx, job.Name, 0, cont)
}
