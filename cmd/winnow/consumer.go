package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/winnowbot/winnow/cachestore"
	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/platform"
	"github.com/winnowbot/winnow/recordstore"
)

const (
	contentCursorKey = "winnow/cursor"
	intakeBatch      = 100
	// dedup window for individual content IDs; the cursor handles restart
	// positioning, this is what actually prevents re-evaluation
	seenContentTTL = 24 * time.Hour
)

// RunConsumer polls the watched communities for new content and feeds each
// item through the event-triggered evaluation pipeline.
func (s *Server) RunConsumer(ctx context.Context) error {
	cursors, err := s.ReadCursors(ctx)
	if err != nil {
		return err
	}
	s.cursorLk.Lock()
	s.cursors = cursors
	s.cursorLk.Unlock()
	s.logger.Info("starting content intake", "interval", s.config.PollInterval, "cursors", len(cursors))

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil {
				s.logger.Error("content poll failed", "err", err)
			}
		}
	}
}

// watchedCommunities is where intake and sweeps look for activity; the
// tracking community itself holds records, not bot traffic.
func (s *Server) watchedCommunities() []string {
	vars := s.engine.Config.Current()
	if communities := vars.GetStringList("intake", "communities"); len(communities) > 0 {
		return communities
	}
	return []string{s.config.Community}
}

func (s *Server) pollOnce(ctx context.Context) error {
	for _, community := range s.watchedCommunities() {
		items, err := s.engine.Platform.RecentContent(ctx, community, intakeBatch)
		if err != nil {
			return err
		}
		// oldest first, so each community's cursor only ever moves forward
		for i := len(items) - 1; i >= 0; i-- {
			s.handleContent(ctx, community, items[i])
		}
	}
	return nil
}

// cursorFor returns the newest content timestamp already handled for the
// community. Cursors are per-community: the watched communities are polled
// in sequence, and a shared high-water mark would drop older-but-new items
// from whichever community happens to be quieter.
func (s *Server) cursorFor(community string) int64 {
	s.cursorLk.Lock()
	defer s.cursorLk.Unlock()
	return s.cursors[community]
}

func (s *Server) advanceCursor(community string, seq int64) {
	s.cursorLk.Lock()
	defer s.cursorLk.Unlock()
	if seq > s.cursors[community] {
		s.cursors[community] = seq
	}
}

func (s *Server) handleContent(ctx context.Context, community string, item *platform.Content) {
	seq := item.CreatedAt.UnixMilli()
	if seq <= s.cursorFor(community) {
		return
	}
	if seen, err := cachestore.HasMarker(ctx, s.engine.Cache, "seen-content", item.ID); err == nil && seen {
		return
	}
	contentReceived.Inc()

	out, err := s.engine.EvaluateContent(ctx, item)
	if err != nil {
		contentFailed.Inc()
		s.logger.Error("evaluating content", "id", item.ID, "author", item.Author, "err", err)
		return
	}
	if out.Verdict != engine.VerdictNone {
		accountsFlagged.Inc()
		ref, err := s.trackingRef(ctx, out.Account)
		if err != nil {
			contentFailed.Inc()
			s.logger.Error("resolving tracking post", "account", out.Account, "err", err)
			return
		}
		if err := s.engine.ApplyOutcome(ctx, out, ref); err != nil {
			contentFailed.Inc()
			s.logger.Error("applying evaluation outcome", "account", out.Account, "err", err)
			return
		}
	}
	contentProcessed.Inc()

	if err := cachestore.SetMarker(ctx, s.engine.Cache, "seen-content", item.ID, seenContentTTL); err != nil {
		s.logger.Warn("marking content seen", "id", item.ID, "err", err)
	}
	s.advanceCursor(community, seq)
	currentSeq.WithLabelValues(community).Set(float64(seq))
}

func (s *Server) trackingRef(ctx context.Context, account string) (string, error) {
	rec, err := s.engine.Records.Get(ctx, account)
	if err == nil {
		return rec.TrackingPostID, nil
	}
	if !errors.Is(err, recordstore.ErrNotFound) {
		return "", err
	}
	if !s.engine.Authoritative {
		return "", nil
	}
	return s.engine.Platform.CreateTrackingPost(ctx, s.config.Community, account)
}

func (s *Server) ReadCursors(ctx context.Context) (map[string]int64, error) {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		s.logger.Info("redis not configured, skipping cursor read")
		return map[string]int64{}, nil
	}

	raw, err := s.rdb.Get(ctx, contentCursorKey).Bytes()
	if err == redis.Nil {
		s.logger.Info("no pre-existing cursors in redis")
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, err
	}
	cursors := map[string]int64{}
	if err := json.Unmarshal(raw, &cursors); err != nil {
		return nil, err
	}
	return cursors, nil
}

func (s *Server) PersistCursors(ctx context.Context) error {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		return nil
	}
	s.cursorLk.Lock()
	snapshot := make(map[string]int64, len(s.cursors))
	for community, seq := range s.cursors {
		snapshot[community] = seq
	}
	s.cursorLk.Unlock()
	if len(snapshot) == 0 {
		return nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, contentCursorKey, raw, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current cursor state every 5 seconds
func (s *Server) RunPersistCursor(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := s.PersistCursors(context.Background()); err != nil {
				s.logger.Error("failed to persist final cursors", "err", err)
			}
			return nil
		case <-ticker.C:
			if err := s.PersistCursors(ctx); err != nil {
				s.logger.Error("failed to persist cursors", "err", err)
			}
		}
	}
}
