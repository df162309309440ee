package chunk

import (
	"context"
	"log/slog"
	"time"

	"github.com/winnowbot/winnow/cachestore"
)

// ProcessFunc handles a single worklist member. The continuation is shared
// across the whole run of the job and may accumulate counters or carry phase
// state between invocations.
type ProcessFunc func(ctx context.Context, member string, cont Continuation) error

// FinalizeFunc runs exactly once, after the worklist has drained.
type FinalizeFunc func(ctx context.Context, cont Continuation) error

const (
	defaultBudget      = 20 * time.Second
	defaultResumeDelay = 5 * time.Second
	defaultBatchSize   = 50
)

// Job drives a long-running batch over a worklist in budgeted invocations.
// Each invocation pulls items from the front of the worklist, processes them
// until the wall-clock budget is spent, and either re-schedules itself with
// the accumulated continuation or finalizes once the worklist is empty.
//
// Items are removed from the worklist whether they succeed or fail: a
// poisoned entry costs one error counter bump, not the whole job.
type Job struct {
	Name     string
	Worklist Worklist

	// Budget bounds a single invocation's wall-clock time. Keep it well
	// under the scheduler's dispatch interval so invocations never stack.
	Budget      time.Duration
	ResumeDelay time.Duration
	BatchSize   int

	Scheduler Scheduler
	Logger    *slog.Logger

	// Cache backs the "ran recently" marker. Optional; without it every
	// Kickoff starts a fresh run.
	Cache        cachestore.CacheStore
	RecentWindow time.Duration

	// Clock is overridable for tests.
	Clock func() time.Time
}

func (j *Job) clock() time.Time {
	if j.Clock != nil {
		return j.Clock()
	}
	return time.Now()
}

func (j *Job) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *Job) budget() time.Duration {
	if j.Budget > 0 {
		return j.Budget
	}
	return defaultBudget
}

func (j *Job) resumeDelay() time.Duration {
	if j.ResumeDelay > 0 {
		return j.ResumeDelay
	}
	return defaultResumeDelay
}

func (j *Job) batchSize() int {
	if j.BatchSize > 0 {
		return j.BatchSize
	}
	return defaultBatchSize
}

// RanRecently reports whether a run of this job started within RecentWindow.
func (j *Job) RanRecently(ctx context.Context) bool {
	if j.Cache == nil || j.RecentWindow <= 0 {
		return false
	}
	ran, err := cachestore.HasMarker(ctx, j.Cache, "job-ran", j.Name)
	if err != nil {
		j.logger().Warn("checking ran-recently marker", "job", j.Name, "err", err)
		return false
	}
	return ran
}

// MarkRan records the start of a run, suppressing overlapping kickoffs for
// RecentWindow.
func (j *Job) MarkRan(ctx context.Context) error {
	if j.Cache == nil || j.RecentWindow <= 0 {
		return nil
	}
	return cachestore.SetMarker(ctx, j.Cache, "job-ran", j.Name, j.RecentWindow)
}

// RunOnce executes one budgeted invocation. It returns true when the
// worklist drained and finalize ran; otherwise it has re-scheduled itself
// with the continuation and returns false. Per-item errors are logged and
// counted but never abort the invocation.
func (j *Job) RunOnce(ctx context.Context, cont Continuation, process ProcessFunc, finalize FinalizeFunc) (bool, error) {
	if cont == nil {
		cont = Continuation{}
	}
	log := j.logger().With("job", j.Name)
	deadline := j.clock().Add(j.budget())
	jobInvocationCount.WithLabelValues(j.Name).Inc()

	processed := 0
	for {
		if !j.clock().Before(deadline) {
			break
		}
		items, err := j.Worklist.Front(ctx, j.batchSize())
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			cont.AddInt("processed", processed)
			jobFinalizeCount.WithLabelValues(j.Name).Inc()
			log.Info("worklist drained, finalizing", "processedTotal", cont.GetInt("processed"))
			if finalize != nil {
				if err := finalize(ctx, cont); err != nil {
					return true, err
				}
			}
			return true, nil
		}
		for _, item := range items {
			if !j.clock().Before(deadline) {
				break
			}
			if err := process(ctx, item.Member, cont); err != nil {
				jobItemErrorCount.WithLabelValues(j.Name).Inc()
				log.Warn("item processing failed", "member", item.Member, "err", err)
			}
			// remove regardless of outcome so a bad entry can't wedge
			// the worklist
			if err := j.Worklist.Remove(ctx, item.Member); err != nil {
				return false, err
			}
			processed++
			jobItemCount.WithLabelValues(j.Name).Inc()
		}
	}

	cont.AddInt("processed", processed)
	remaining, err := j.Worklist.Len(ctx)
	if err != nil {
		return false, err
	}
	log.Info("budget spent, rescheduling", "processed", processed, "remaining", remaining)
	if err := j.Scheduler.Schedule(ctx, j.Name, j.resumeDelay(), cont); err != nil {
		return false, err
	}
	return false, nil
}
