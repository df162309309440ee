package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/varstore"
)

// configPoller re-fetches the externally edited variables page and feeds it
// to the loader. The page content hash doubles as the revision, so an
// unchanged page is a cheap no-op, and a page that fails validation leaves
// the last-known-good variables in place while the editor gets told.
type configPoller struct {
	url      string
	loader   *varstore.Loader
	notifier engine.Notifier
	logger   *slog.Logger
	client   *retryablehttp.Client

	// last revision we alerted on, to avoid repeating the same complaint
	// every poll
	lastAlertRev string
}

func newConfigPoller(url string, loader *varstore.Loader, notifier engine.Notifier, logger *slog.Logger) *configPoller {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &configPoller{
		url:      url,
		loader:   loader,
		notifier: notifier,
		logger:   logger,
		client:   client,
	}
}

func (p *configPoller) FetchOnce(ctx context.Context) error {
	if p.url == "" {
		p.logger.Info("no config URL set, variables stay empty")
		return nil
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching variables page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		return fmt.Errorf("fetching variables page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading variables page: %w", err)
	}

	sum := sha256.Sum256(body)
	revision := hex.EncodeToString(sum[:8])

	changed, err := p.loader.Load(revision, string(body))
	if err != nil {
		var le *varstore.LoadError
		if errors.As(err, &le) && p.lastAlertRev != revision {
			p.lastAlertRev = revision
			editor := p.loader.Current().GetString("meta", "editor", "")
			if alertErr := p.notifier.SendConfigAlert(ctx, editor, le.Error()); alertErr != nil {
				p.logger.Error("sending config alert", "err", alertErr)
			}
		}
		return err
	}
	if changed {
		p.logger.Info("loaded new variables revision", "revision", revision)
	}
	return nil
}

func (p *configPoller) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.FetchOnce(ctx); err != nil {
				p.logger.Error("config poll failed, keeping current variables", "err", err)
			}
		}
	}
}
