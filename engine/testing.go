package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/winnowbot/winnow/cachestore"
	"github.com/winnowbot/winnow/countstore"
	"github.com/winnowbot/winnow/evaluators"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/varstore"
)

// RecheckRecorder records scheduled re-checks for assertions.
type RecheckRecorder struct {
	lk        sync.Mutex
	Scheduled []string
	Delays    []time.Duration
}

var _ RecheckScheduler = (*RecheckRecorder)(nil)

func (r *RecheckRecorder) ScheduleRecheck(ctx context.Context, account string, delay time.Duration) error {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.Scheduled = append(r.Scheduled, account)
	r.Delays = append(r.Delays, delay)
	return nil
}

var testConfigPage = `
name: badusername
regexes:
  - "^Bot\\d+$"
---
name: zombiecomment
phraseregexes:
  - "(?i)^nice post"
threshold: 2
banContentThreshold: 4
`

// EngineTestFixture builds a fully in-memory engine around a platform Fake.
// Intentionally exported, for use in other packages' tests.
func EngineTestFixture() (*Engine, *platform.Fake) {
	loader := varstore.NewLoader(nil)
	if _, err := loader.Load("test-rev", testConfigPage); err != nil {
		panic(err)
	}
	fake := platform.NewFake()
	eng := &Engine{
		Logger:        slog.Default(),
		Records:       recordstore.NewMemRecordStore(),
		Counters:      countstore.NewMemCountStore(),
		Cache:         cachestore.NewMemCacheStore(),
		Config:        loader,
		Factories:     evaluators.DefaultFactories(),
		Platform:      fake,
		Notifier:      NullNotifier{},
		Rechecks:      &RecheckRecorder{},
		Community:     "botwatch",
		Authoritative: true,
	}
	return eng, fake
}
