package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/winnowbot/winnow/cachestore"
	"github.com/winnowbot/winnow/chunk"
	"github.com/winnowbot/winnow/countstore"
	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/evaluators"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
	"github.com/winnowbot/winnow/sweeps"
	"github.com/winnowbot/winnow/varstore"
)

const (
	defaultJobBudget          = 20 * time.Second
	defaultPollInterval       = 30 * time.Second
	defaultConfigPollInterval = time.Minute
	defaultSweepInterval      = 15 * time.Minute

	dispatchInterval = time.Second
	dispatchBatch    = 10
)

// dueScheduler is the scheduler surface the dispatch loop needs beyond plain
// Schedule: popping entries whose run time has passed.
type dueScheduler interface {
	chunk.Scheduler
	PopDue(ctx context.Context, now time.Time, limit int) ([]chunk.Scheduled, error)
}

type Server struct {
	logger     *slog.Logger
	config     Config
	engine     *engine.Engine
	rdb        *redis.Client
	scheduler  dueScheduler
	dispatcher *chunk.Dispatcher
	sweepSet   []sweeps.Sweep
	poller     *configPoller

	cursorLk sync.Mutex
	cursors  map[string]int64
}

type Config struct {
	Logger             *slog.Logger
	RedisURL           string
	ConfigURL          string
	PlatformHost       string
	PlatformToken      string
	PlatformRateLimit  int
	Community          string
	Authoritative      bool
	SlackWebhookURL    string
	JobBudget          time.Duration
	PollInterval       time.Duration
	ConfigPollInterval time.Duration
	SweepInterval      time.Duration
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.ConfigPollInterval <= 0 {
		config.ConfigPollInterval = defaultConfigPollInterval
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaultSweepInterval
	}

	var records recordstore.RecordStore
	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var scheduler dueScheduler
	var newWorklist func(name string) chunk.Worklist
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		rec, err := recordstore.NewRedisRecordStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis recordstore: %v", err)
		}
		records = rec

		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh

		scheduler = chunk.NewRedisScheduler(rdb)
		newWorklist = func(name string) chunk.Worklist {
			return chunk.NewRedisWorklist(rdb, name)
		}
	} else {
		logger.Info("redis not configured, using in-memory stores")
		records = recordstore.NewMemRecordStore()
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore()
		scheduler = chunk.NewMemScheduler()
		worklists := make(map[string]chunk.Worklist)
		newWorklist = func(name string) chunk.Worklist {
			if wl, ok := worklists[name]; ok {
				return wl
			}
			wl := chunk.NewMemWorklist()
			worklists[name] = wl
			return wl
		}
	}

	var notifier engine.Notifier = engine.NullNotifier{}
	if config.SlackWebhookURL != "" {
		notifier = &engine.SlackNotifier{WebhookURL: config.SlackWebhookURL}
	}

	loader := varstore.NewLoader(logger)
	rechecks := sweeps.NewRecheckQueue(newWorklist(sweeps.RecheckWorklist))

	eng := &engine.Engine{
		Logger:    logger,
		Records:   records,
		Counters:  counters,
		Cache:     cache,
		Config:    loader,
		Factories: evaluators.DefaultFactories(),
		Platform: platform.NewHTTPClient(
			config.PlatformHost,
			config.PlatformToken,
			config.PlatformRateLimit,
		),
		Notifier:      notifier,
		Rechecks:      rechecks,
		Community:     config.Community,
		Authoritative: config.Authoritative,
	}

	deps := sweeps.Deps{
		Engine:      eng,
		Scheduler:   scheduler,
		Cache:       cache,
		Logger:      logger,
		NewWorklist: newWorklist,
		Budget:      config.JobBudget,
	}
	sweepSet := []sweeps.Sweep{
		sweeps.NewKarmaFarm(deps),
		sweeps.NewBacktest(deps),
		sweeps.NewRegexAudit(deps),
		sweeps.NewReconcile(deps),
		sweeps.NewCleanup(deps),
	}
	dispatcher := chunk.NewDispatcher(logger)
	for _, sw := range sweepSet {
		sw.Register(dispatcher)
	}

	s := &Server{
		logger:     logger,
		config:     config,
		engine:     eng,
		rdb:        rdb,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		sweepSet:   sweepSet,
		poller:     newConfigPoller(config.ConfigURL, loader, notifier, logger),
		cursors:    map[string]int64{},
	}

	return s, nil
}

// Run starts every loop and blocks until the context is cancelled: config
// polling, the content intake poll, the job dispatch loop, sweep kickoffs,
// and cursor persistence.
func (s *Server) Run(ctx context.Context) error {
	// first config fetch happens before anything evaluates content
	if err := s.poller.FetchOnce(ctx); err != nil {
		s.logger.Warn("initial config fetch failed, starting with empty variables", "err", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.poller.Run(ctx, s.config.ConfigPollInterval) })
	eg.Go(func() error { return s.RunConsumer(ctx) })
	eg.Go(func() error { return s.RunDispatcher(ctx) })
	eg.Go(func() error { return s.RunSweepKickoffs(ctx) })
	eg.Go(func() error { return s.RunPersistCursor(ctx) })
	return eg.Wait()
}

// RunDispatcher pops due job invocations and hands them to their handlers.
func (s *Server) RunDispatcher(ctx context.Context) error {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			due, err := s.scheduler.PopDue(ctx, time.Now(), dispatchBatch)
			if err != nil {
				s.logger.Error("popping due jobs", "err", err)
				continue
			}
			for _, entry := range due {
				s.dispatcher.Dispatch(ctx, entry)
			}
		}
	}
}

// RunSweepKickoffs periodically offers every sweep a fresh start; each
// sweep's own "ran recently" marker sets its real cadence.
func (s *Server) RunSweepKickoffs(ctx context.Context) error {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, sw := range s.sweepSet {
				if err := sw.Kickoff(ctx); err != nil {
					s.logger.Error("sweep kickoff failed", "sweep", sw.Name(), "err", err)
				}
			}
		}
	}
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
