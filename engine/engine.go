// Package engine ties the classification system together: it runs the
// evaluator pipeline over incoming content and sweep candidates, and owns the
// status transition function, which is the only code path that mutates a
// classification record's status.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/winnowbot/winnow/cachestore"
	"github.com/winnowbot/winnow/countstore"
	"github.com/winnowbot/winnow/evaluators"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/varstore"
)

// RecheckScheduler queues an account for a deferred re-check after a status
// transition. The chunked cleanup sweep consumes the queue.
type RecheckScheduler interface {
	ScheduleRecheck(ctx context.Context, account string, delay time.Duration) error
}

// runtime for evaluating accounts and persisting classification decisions.
//
// Several fields are interface-typed but must not be nil; use
// EngineTestFixture (testing.go) or cmd/winnow wiring as reference.
type Engine struct {
	Logger    *slog.Logger
	Records   recordstore.RecordStore
	Counters  countstore.CountStore
	Cache     cachestore.CacheStore
	Config    *varstore.Loader
	Factories []evaluators.Factory
	Platform  platform.Client
	Notifier  Notifier
	Rechecks  RecheckScheduler

	// name of the community holding the tracking records
	Community string
	// only the authoritative node updates aggregates, schedules re-checks,
	// and messages submitters
	Authoritative bool
}

const summaryCacheTTL = 30 * time.Minute

// accountSummary fetches the lightweight account metadata, with a short-TTL
// cache in front so bursts of events for one account cost one API call.
func (eng *Engine) accountSummary(ctx context.Context, account string) (*platform.AccountSummary, error) {
	if cached, err := eng.Cache.Get(ctx, "summary", account); err == nil && cached != "" {
		var s platform.AccountSummary
		if err := json.Unmarshal([]byte(cached), &s); err == nil {
			return &s, nil
		}
	}
	s, err := eng.Platform.AccountSummary(ctx, account)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(s); err == nil {
		if err := eng.Cache.Set(ctx, "summary", account, string(raw), summaryCacheTTL); err != nil {
			eng.Logger.Warn("caching account summary", "account", account, "err", err)
		}
	}
	return s, nil
}

// PurgeAccountCaches drops cached metadata for an account, after anything
// that changes its state.
func (eng *Engine) PurgeAccountCaches(ctx context.Context, account string) error {
	return eng.Cache.Purge(ctx, "summary", account)
}
