package sweeps

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winnowbot/winnow/cachestore"
	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/status"
)

type fixture struct {
	deps      Deps
	eng       *engine.Engine
	fake      *platform.Fake
	sched     *chunk.MemScheduler
	disp      *chunk.Dispatcher
	worklists map[string]chunk.Worklist
	notifier  *recordingNotifier
	now       time.Time
}

type recordingNotifier struct {
	engine.NullNotifier
	Reports []string
	Alerts  []string
}

func (n *recordingNotifier) SendReport(ctx context.Context, title, body string) error {
	n.Reports = append(n.Reports, title+"\n"+body)
	return nil
}

func (n *recordingNotifier) SendConfigAlert(ctx context.Context, editor, detail string) error {
	n.Alerts = append(n.Alerts, detail)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, fake := engine.EngineTestFixture()

	notifier := &recordingNotifier{}
	eng.Notifier = notifier

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		eng:       eng,
		fake:      fake,
		sched:     chunk.NewMemScheduler(),
		disp:      chunk.NewDispatcher(slog.Default()),
		worklists: make(map[string]chunk.Worklist),
		notifier:  notifier,
		now:       now,
	}
	f.deps = Deps{
		Engine:    eng,
		Scheduler: f.sched,
		Cache:     cachestore.NewMemCacheStore(),
		Logger:    slog.Default(),
		NewWorklist: func(name string) chunk.Worklist {
			if wl, ok := f.worklists[name]; ok {
				return wl
			}
			wl := chunk.NewMemWorklist()
			f.worklists[name] = wl
			return wl
		},
		Clock: func() time.Time { return f.now },
	}
	return f
}

// drain runs the scheduler loop to completion: pop everything due, dispatch,
// repeat until nothing is queued.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		pending := f.sched.PopAll()
		if len(pending) == 0 {
			return
		}
		for _, s := range pending {
			f.disp.Dispatch(ctx, s)
		}
	}
	t.Fatal("scheduler never drained")
}

func freshSummary(name string, now time.Time) *platform.AccountSummary {
	return &platform.AccountSummary{
		Name:         name,
		CreatedAt:    now.Add(-24 * time.Hour),
		CommentKarma: 5,
	}
}

func establishedSummary(name string, now time.Time) *platform.AccountSummary {
	return &platform.AccountSummary{
		Name:         name,
		CreatedAt:    now.Add(-5 * 365 * 24 * time.Hour),
		CommentKarma: 4000,
		LinkKarma:    2000,
	}
}

func TestKarmaFarmSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()

	f.fake.Recents["botwatch"] = []string{"Bot42", "regularjoe"}
	f.fake.Summaries["Bot42"] = freshSummary("Bot42", now)
	f.fake.Summaries["regularjoe"] = establishedSummary("regularjoe", now)

	sweep := NewKarmaFarm(f.deps)
	sweep.Register(f.disp)
	require.NoError(t, sweep.Kickoff(ctx))
	f.drain(t)

	// the matching fresh account got auto-banned via a fresh tracking post
	assert.Contains(f.fake.Bans, "Bot42")
	rec, err := f.eng.Records.Get(ctx, "Bot42")
	require.NoError(t, err)
	assert.Equal(status.StatusBanned, rec.Status)
	assert.NotEmpty(rec.TrackingPostID)
	assert.Equal("Bot42", f.fake.TrackingPosts[rec.TrackingPostID])

	// the established account was left alone
	_, err = f.eng.Records.Get(ctx, "regularjoe")
	assert.ErrorIs(err, recordstore.ErrNotFound)

	remaining, err := f.worklists[karmaFarmJob].Len(ctx)
	assert.NoError(err)
	assert.EqualValues(0, remaining)

	// a second kickoff inside the recent window is a no-op
	require.NoError(t, sweep.Kickoff(ctx))
	assert.Equal(0, f.sched.PendingCount())
}

func putRecord(t *testing.T, f *fixture, account string, st status.Status, prev *status.Status) {
	t.Helper()
	ctx := context.Background()
	rec := &status.Record{
		Account:        account,
		Status:         st,
		PreviousStatus: prev,
		Submitter:      "reporter",
		Operator:       "moderator",
		ReportedAt:     f.now.Add(-30 * 24 * time.Hour),
		LastUpdate:     f.now.Add(-24 * time.Hour),
		TrackingPostID: "post-" + account,
	}
	require.NoError(t, f.eng.Records.Put(ctx, rec))
	require.NoError(t, f.eng.Counters.IncrementBy(ctx, st, 1))
}

func TestCleanupSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	rechecks := f.deps.NewWorklist(RecheckWorklist)
	queue := NewRecheckQueue(rechecks)
	queue.SetClock(f.deps.Clock)
	f.eng.Rechecks = queue

	banned := status.StatusBanned
	putRecord(t, f, "deleteduser", status.StatusBanned, nil)
	putRecord(t, f, "suspendeduser", status.StatusOrganic, nil)
	putRecord(t, f, "backuser", status.StatusRetired, &banned)
	putRecord(t, f, "pendinggone", status.StatusPending, nil)
	putRecord(t, f, "notdue", status.StatusBanned, nil)

	f.fake.Gone["deleteduser"] = true
	f.fake.Gone["pendinggone"] = true
	f.fake.Summaries["suspendeduser"] = &platform.AccountSummary{
		Name: "suspendeduser", CreatedAt: f.now.Add(-400 * 24 * time.Hour), Suspended: true,
	}
	f.fake.Summaries["backuser"] = establishedSummary("backuser", f.now)
	f.fake.Summaries["notdue"] = establishedSummary("notdue", f.now)

	// everything but notdue is past its horizon
	for _, account := range []string{"deleteduser", "suspendeduser", "backuser", "pendinggone"} {
		require.NoError(t, queue.ScheduleRecheck(ctx, account, -time.Minute))
	}
	require.NoError(t, queue.ScheduleRecheck(ctx, "notdue", 24*time.Hour))

	sweep := NewCleanup(f.deps)
	sweep.Register(f.disp)
	require.NoError(t, sweep.Kickoff(ctx))
	f.drain(t)

	// deleted account tombstoned as retired, prior judgment preserved
	rec, err := f.eng.Records.Get(ctx, "deleteduser")
	require.NoError(t, err)
	assert.Equal(status.StatusRetired, rec.Status)
	require.NotNil(t, rec.PreviousStatus)
	assert.Equal(status.StatusBanned, *rec.PreviousStatus)
	assert.Equal(status.InterpretationBot, status.Effective(rec))

	// suspended account tombstoned as purged
	rec, err = f.eng.Records.Get(ctx, "suspendeduser")
	require.NoError(t, err)
	assert.Equal(status.StatusPurged, rec.Status)
	require.NotNil(t, rec.PreviousStatus)
	assert.Equal(status.StatusOrganic, *rec.PreviousStatus)

	// reappearing account restored to its prior status
	rec, err = f.eng.Records.Get(ctx, "backuser")
	require.NoError(t, err)
	assert.Equal(status.StatusBanned, rec.Status)

	// pending record for a vanished account dropped entirely
	_, err = f.eng.Records.Get(ctx, "pendinggone")
	assert.ErrorIs(err, recordstore.ErrNotFound)
	pending, err := f.eng.Counters.Get(ctx, status.StatusPending)
	assert.NoError(err)
	assert.EqualValues(0, pending)

	// untouched: not yet due
	rec, err = f.eng.Records.Get(ctx, "notdue")
	require.NoError(t, err)
	assert.Equal(status.StatusBanned, rec.Status)

	// the three transitions re-queued their accounts, notdue is still queued
	n, err := rechecks.Len(ctx)
	assert.NoError(err)
	assert.EqualValues(4, n)
}

func TestReconcileSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	putRecord(t, f, "bot-a", status.StatusBanned, nil)
	putRecord(t, f, "bot-b", status.StatusBanned, nil)
	putRecord(t, f, "human-a", status.StatusOrganic, nil)

	// skew one counter the way a missed decrement would
	require.NoError(t, f.eng.Counters.Set(ctx, status.StatusBanned, 5))

	sweep := NewReconcile(f.deps)
	sweep.Register(f.disp)
	require.NoError(t, sweep.Kickoff(ctx))
	f.drain(t)

	banned, err := f.eng.Counters.Get(ctx, status.StatusBanned)
	assert.NoError(err)
	assert.EqualValues(2, banned)
	organic, err := f.eng.Counters.Get(ctx, status.StatusOrganic)
	assert.NoError(err)
	assert.EqualValues(1, organic)

	require.Len(t, f.notifier.Reports, 1)
	assert.Contains(f.notifier.Reports[0], "banned: counter 5, records 2")
}

func TestReconcileSweepConsistentNoReport(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	putRecord(t, f, "bot-a", status.StatusBanned, nil)

	sweep := NewReconcile(f.deps)
	sweep.Register(f.disp)
	assert.NoError(sweep.Kickoff(ctx))
	f.drain(t)

	assert.Empty(f.notifier.Reports)
}

func TestBacktestSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)
	now := time.Now()

	putRecord(t, f, "Bot7", status.StatusBanned, nil)
	putRecord(t, f, "missedbot", status.StatusBanned, nil)
	putRecord(t, f, "human-a", status.StatusOrganic, nil)
	putRecord(t, f, "stillpending", status.StatusPending, nil)

	f.fake.Summaries["Bot7"] = freshSummary("Bot7", now)
	f.fake.Summaries["missedbot"] = establishedSummary("missedbot", now)
	f.fake.Summaries["human-a"] = establishedSummary("human-a", now)

	sweep := NewBacktest(f.deps)
	sweep.Register(f.disp)
	require.NoError(t, sweep.Kickoff(ctx))
	f.drain(t)

	require.Len(t, f.notifier.Reports, 1)
	report := f.notifier.Reports[0]
	assert.Contains(report, "agree/Bad Username: 1")
	assert.NotContains(report, "disagree/")
	assert.Contains(report, "settled bots with no hit: 1")
	// pending accounts are out of scope for accuracy measurement
	assert.Contains(report, "settled accounts checked: 3")

	// the sweep observes, never transitions
	rec, err := f.eng.Records.Get(ctx, "missedbot")
	require.NoError(t, err)
	assert.Equal(status.StatusBanned, rec.Status)
	assert.Empty(f.fake.Bans)
}

func TestAuditPattern(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(auditPattern("badusername:regexes", `^Bot\d+$`))

	finding := auditPattern("linkfarm:domainregexes", `(a+)+b`)
	assert.Contains(finding, "rejected")

	finding = auditPattern("linkfarm:domainregexes", `([a-z`)
	assert.NotEmpty(finding)
}

func TestRegexAuditSweepCleanConfig(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture(t)

	sweep := NewRegexAudit(f.deps)
	sweep.Register(f.disp)
	assert.NoError(sweep.Kickoff(ctx))
	f.drain(t)

	// fixture config patterns are all safe and fast
	assert.Empty(f.notifier.Alerts)
}
