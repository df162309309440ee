package platform

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records one SendMessage call on the Fake.
type SentMessage struct {
	Account string
	Subject string
	Body    string
}

// Fake is an in-process Client for tests. HistoryCalls counts full-history
// fetches, so tests can prove pre-filter short-circuiting.
type Fake struct {
	lk        sync.Mutex
	Summaries map[string]*AccountSummary
	Histories map[string][]*Content
	Gone      map[string]bool
	Recents   map[string][]string
	Stream    map[string][]*Content

	HistoryCalls int
	SummaryCalls int
	Bans         []string
	Flairs       map[string]string
	Messages     []SentMessage
	// tracking posts created, keyed by post ID -> account
	TrackingPosts map[string]string
	nextPostID    int
}

var _ Client = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		Summaries:     make(map[string]*AccountSummary),
		Histories:     make(map[string][]*Content),
		Gone:          make(map[string]bool),
		Recents:       make(map[string][]string),
		Stream:        make(map[string][]*Content),
		Flairs:        make(map[string]string),
		TrackingPosts: make(map[string]string),
	}
}

func (f *Fake) AccountSummary(ctx context.Context, account string) (*AccountSummary, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.SummaryCalls++
	if f.Gone[account] {
		return nil, ErrAccountGone
	}
	s, ok := f.Summaries[account]
	if !ok {
		return nil, ErrAccountGone
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) History(ctx context.Context, account string, limit int) ([]*Content, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.HistoryCalls++
	if f.Gone[account] {
		return nil, ErrAccountGone
	}
	h := f.Histories[account]
	if limit > 0 && len(h) > limit {
		h = h[:limit]
	}
	out := make([]*Content, len(h))
	copy(out, h)
	return out, nil
}

func (f *Fake) RecentAccounts(ctx context.Context, community string, limit int) ([]string, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	accounts := f.Recents[community]
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	out := make([]string, len(accounts))
	copy(out, accounts)
	return out, nil
}

func (f *Fake) RecentContent(ctx context.Context, community string, limit int) ([]*Content, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	items := f.Stream[community]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]*Content, len(items))
	copy(out, items)
	return out, nil
}

func (f *Fake) Ban(ctx context.Context, community, account, reason string) error {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.Bans = append(f.Bans, account)
	return nil
}

func (f *Fake) CreateTrackingPost(ctx context.Context, community, account string) (string, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.nextPostID++
	id := fmt.Sprintf("post-%d", f.nextPostID)
	f.TrackingPosts[id] = account
	return id, nil
}

func (f *Fake) SetTrackingFlair(ctx context.Context, postID, flairID string) error {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.Flairs[postID] = flairID
	return nil
}

func (f *Fake) AccountExists(ctx context.Context, account string) (bool, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	if f.Gone[account] {
		return false, nil
	}
	_, ok := f.Summaries[account]
	return ok, nil
}

func (f *Fake) SendMessage(ctx context.Context, account, subject, body string) error {
	f.lk.Lock()
	defer f.lk.Unlock()
	f.Messages = append(f.Messages, SentMessage{Account: account, Subject: subject, Body: body})
	return nil
}
