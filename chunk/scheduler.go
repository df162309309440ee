package chunk

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduled is one queued job invocation with its continuation payload.
type Scheduled struct {
	Job   string       `json:"job"`
	RunAt time.Time    `json:"runAt"`
	Cont  Continuation `json:"cont,omitempty"`
}

// Scheduler queues deferred invocations. The daemon's dispatch loop pops due
// entries and hands them to registered handlers; jobs re-schedule themselves
// through the same interface while work remains.
type Scheduler interface {
	Schedule(ctx context.Context, job string, delay time.Duration, cont Continuation) error
}

// Handler processes one invocation of a named job.
type Handler func(ctx context.Context, cont Continuation) error

// Dispatcher routes popped invocations to handlers. An unknown job name or a
// handler error is logged and dropped; the scheduler never retries on its
// own (jobs own their retry behavior by re-scheduling).
type Dispatcher struct {
	lk       sync.Mutex
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

func (d *Dispatcher) Register(job string, h Handler) {
	d.lk.Lock()
	defer d.lk.Unlock()
	d.handlers[job] = h
}

func (d *Dispatcher) Dispatch(ctx context.Context, s Scheduled) {
	d.lk.Lock()
	h, ok := d.handlers[s.Job]
	d.lk.Unlock()
	if !ok {
		d.logger.Warn("no handler for scheduled job", "job", s.Job)
		return
	}
	if s.Cont == nil {
		s.Cont = NewContinuation()
	}
	jobDispatchCount.WithLabelValues(s.Job).Inc()
	if err := h(ctx, s.Cont); err != nil {
		jobErrorCount.WithLabelValues(s.Job).Inc()
		d.logger.Error("job invocation failed", "job", s.Job, "err", err)
	}
}

// MemScheduler queues in memory; tests drain it synchronously.
type MemScheduler struct {
	lk      sync.Mutex
	pending []Scheduled
	now     func() time.Time
}

var _ Scheduler = (*MemScheduler)(nil)

func NewMemScheduler() *MemScheduler {
	return &MemScheduler{now: time.Now}
}

func (s *MemScheduler) SetClock(now func() time.Time) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.now = now
}

func (s *MemScheduler) Schedule(ctx context.Context, job string, delay time.Duration, cont Continuation) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.pending = append(s.pending, Scheduled{
		Job:   job,
		RunAt: s.now().Add(delay),
		Cont:  cont,
	})
	return nil
}

// PopAll returns and clears every pending invocation, ignoring RunAt; tests
// use it to step through a job's invocations deterministically.
func (s *MemScheduler) PopAll() []Scheduled {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// PopDue returns and clears invocations whose RunAt has passed; the daemon's
// dispatch loop uses this when running without redis.
func (s *MemScheduler) PopDue(ctx context.Context, now time.Time, limit int) ([]Scheduled, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	var due []Scheduled
	var rest []Scheduled
	for _, entry := range s.pending {
		if len(due) < limit && !entry.RunAt.After(now) {
			due = append(due, entry)
		} else {
			rest = append(rest, entry)
		}
	}
	s.pending = rest
	return due, nil
}

func (s *MemScheduler) PendingCount() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.pending)
}
