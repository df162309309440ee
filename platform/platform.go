// Package platform abstracts the hosting platform's content-fetch and
// moderation-action APIs. The engine and sweeps only ever see these
// interfaces; the live implementation speaks a JSON moderation API, and tests
// use the in-process Fake.
package platform

import (
	"context"
	"errors"
	"time"
)

var ErrAccountGone = errors.New("account no longer exists on the platform")

// ContentKind discriminates history items.
type ContentKind string

const (
	KindComment ContentKind = "comment"
	KindPost    ContentKind = "post"
	KindEdit    ContentKind = "edit"
)

// Content is one item of an account's public history.
type Content struct {
	Kind      ContentKind `json:"kind"`
	ID        string      `json:"id"`
	Author    string      `json:"author"`
	Community string      `json:"community,omitempty"`
	Title     string      `json:"title,omitempty"`
	Body      string      `json:"body,omitempty"`
	URL       string      `json:"url,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Score     int         `json:"score"`
}

// AccountSummary is the lightweight account metadata available without a
// history fetch. Pre-filters run against this.
type AccountSummary struct {
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	CommentKarma int       `json:"commentKarma"`
	LinkKarma    int       `json:"linkKarma"`
	Verified     bool      `json:"verified"`
	// Suspended accounts still resolve but cannot act; distinct from gone.
	Suspended    bool      `json:"suspended,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	HasAvatar    bool      `json:"hasAvatar"`
}

func (a *AccountSummary) TotalKarma() int {
	return a.CommentKarma + a.LinkKarma
}

func (a *AccountSummary) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

// HistoryLimit bounds full-history fetches; evaluators see at most this many
// items, newest first.
const HistoryLimit = 100

// Client is the full host-platform surface used by this service.
type Client interface {
	// AccountSummary returns ErrAccountGone for deleted/suspended accounts.
	AccountSummary(ctx context.Context, account string) (*AccountSummary, error)
	// History returns up to limit items, newest first.
	History(ctx context.Context, account string, limit int) ([]*Content, error)
	// RecentAccounts lists accounts with recent activity in the given
	// community, for proactive sweeps.
	RecentAccounts(ctx context.Context, community string, limit int) ([]string, error)
	// RecentContent lists the newest comments, posts, and edits in a
	// community, newest first. The event intake loop polls this.
	RecentContent(ctx context.Context, community string, limit int) ([]*Content, error)
	// Ban removes the account from the community.
	Ban(ctx context.Context, community, account, reason string) error
	// CreateTrackingPost opens the tracking post for an account in the
	// authoritative community and returns its ID.
	CreateTrackingPost(ctx context.Context, community, account string) (string, error)
	// SetTrackingFlair applies a flair template to the account's tracking
	// post on the authoritative community.
	SetTrackingFlair(ctx context.Context, postID, flairID string) error
	// SendMessage delivers a private message (submitter feedback, config
	// editor notifications).
	SendMessage(ctx context.Context, account, subject, body string) error
	// AccountExists is the cheap reachability probe cleanup sweeps use;
	// unlike AccountSummary it never caches and never errors on absence.
	AccountExists(ctx context.Context, account string) (bool, error)
}
