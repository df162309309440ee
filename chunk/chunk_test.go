package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winnowbot/winnow/cachestore"
)

// fakeClock advances only when told, so budget math is deterministic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestJobBudgetedInvocations(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	wl := NewMemWorklist()
	for i := 0; i < 120; i++ {
		assert.NoError(wl.Add(ctx, Item{Member: fmt.Sprintf("acct-%03d", i), Score: float64(i)}))
	}

	sched := NewMemScheduler()
	sched.SetClock(clock.Now)

	job := &Job{
		Name:      "backfill",
		Worklist:  wl,
		Budget:    50 * time.Second,
		Scheduler: sched,
		Logger:    slog.Default(),
		Clock:     clock.Now,
	}

	seen := make(map[string]int)
	process := func(ctx context.Context, member string, cont Continuation) error {
		seen[member]++
		clock.Advance(time.Second)
		return nil
	}
	finalized := 0
	finalize := func(ctx context.Context, cont Continuation) error {
		finalized++
		assert.Equal(120, cont.GetInt("processed"))
		return nil
	}

	cont := NewContinuation()
	invocations := 0
	for {
		invocations++
		require.Less(t, invocations, 10, "job did not terminate")
		finished, err := job.RunOnce(ctx, cont, process, finalize)
		require.NoError(t, err)
		if finished {
			break
		}
		pending := sched.PopAll()
		require.Len(t, pending, 1)
		assert.Equal("backfill", pending[0].Job)
		// round-trip the continuation through JSON like the redis
		// scheduler would
		raw, err := pending[0].Cont.Marshal()
		require.NoError(t, err)
		cont, err = UnmarshalContinuation(raw)
		require.NoError(t, err)
	}

	assert.Equal(3, invocations)
	assert.Equal(1, finalized)
	assert.Equal(0, sched.PendingCount())
	remaining, err := wl.Len(ctx)
	assert.NoError(err)
	assert.EqualValues(0, remaining)
	assert.Len(seen, 120)
	for member, count := range seen {
		assert.Equal(1, count, "member %s processed %d times", member, count)
	}
}

func TestJobPoisonedItem(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	wl := NewMemWorklist()
	for i := 0; i < 5; i++ {
		assert.NoError(wl.Add(ctx, Item{Member: fmt.Sprintf("acct-%d", i), Score: float64(i)}))
	}

	job := &Job{
		Name:      "sweep",
		Worklist:  wl,
		Budget:    time.Minute,
		Scheduler: NewMemScheduler(),
	}

	var processed []string
	process := func(ctx context.Context, member string, cont Continuation) error {
		processed = append(processed, member)
		if member == "acct-2" {
			return fmt.Errorf("upstream timeout")
		}
		return nil
	}
	finalized := false
	finalize := func(ctx context.Context, cont Continuation) error {
		finalized = true
		return nil
	}

	finished, err := job.RunOnce(ctx, nil, process, finalize)
	assert.NoError(err)
	assert.True(finished)
	assert.True(finalized)
	assert.Len(processed, 5)
	remaining, err := wl.Len(ctx)
	assert.NoError(err)
	assert.EqualValues(0, remaining, "errored item must still leave the worklist")
}

func TestJobRanRecently(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	cache := cachestore.NewMemCacheStore()
	cache.SetClock(clock.Now)

	job := &Job{
		Name:         "audit",
		Worklist:     NewMemWorklist(),
		Cache:        cache,
		RecentWindow: time.Hour,
	}

	assert.False(job.RanRecently(ctx))
	assert.NoError(job.MarkRan(ctx))
	assert.True(job.RanRecently(ctx))

	clock.Advance(2 * time.Hour)
	assert.False(job.RanRecently(ctx))
}

func TestContinuationRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cont := NewContinuation()
	cont.SetPhase("collect")
	cont.SetString("cursor", "acct-050")
	cont.SetInt("hits", 7)
	cont.AddInt("hits", 2)

	raw, err := cont.Marshal()
	assert.NoError(err)

	back, err := UnmarshalContinuation(raw)
	assert.NoError(err)
	assert.Equal("collect", back.Phase())
	assert.Equal("acct-050", back.GetString("cursor"))
	assert.Equal(9, back.GetInt("hits"))

	empty, err := UnmarshalContinuation(nil)
	assert.NoError(err)
	assert.NotNil(empty)
	assert.Equal("", empty.Phase())
}

func TestMemWorklistOrdering(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	wl := NewMemWorklist()
	assert.NoError(wl.Add(ctx,
		Item{Member: "charlie", Score: 3},
		Item{Member: "alpha", Score: 1},
		Item{Member: "bravo", Score: 2},
	))

	// re-adding updates the score instead of duplicating
	assert.NoError(wl.Add(ctx, Item{Member: "charlie", Score: 0}))

	front, err := wl.Front(ctx, 2)
	assert.NoError(err)
	assert.Equal([]Item{{Member: "charlie", Score: 0}, {Member: "alpha", Score: 1}}, front)

	assert.NoError(wl.Remove(ctx, "alpha"))
	assert.NoError(wl.Remove(ctx, "alpha")) // idempotent
	n, err := wl.Len(ctx)
	assert.NoError(err)
	assert.EqualValues(2, n)
}

func TestDispatcher(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := NewDispatcher(slog.Default())
	var got Continuation
	d.Register("sweep", func(ctx context.Context, cont Continuation) error {
		got = cont
		return nil
	})

	cont := NewContinuation()
	cont.SetPhase("process")
	d.Dispatch(ctx, Scheduled{Job: "sweep", Cont: cont})
	assert.Equal("process", got.Phase())

	// unknown jobs are dropped, not fatal
	d.Dispatch(ctx, Scheduled{Job: "never-registered"})
}
