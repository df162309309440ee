package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/winnowbot/winnow/status"
)

// Notifier delivers operational notifications to the moderation team.
// Submitter feedback goes through the platform message API instead, since it
// targets platform accounts.
type Notifier interface {
	SendTransition(ctx context.Context, rec *status.Record, prev status.Status, operator, reason string) error
	// SendConfigAlert reports a rejected configuration page to whoever
	// last edited it.
	SendConfigAlert(ctx context.Context, editor, detail string) error
	// SendReport delivers a sweep's summary (backtest accuracy,
	// reconciliation deltas).
	SendReport(ctx context.Context, title, body string) error
}

type NullNotifier struct{}

var _ Notifier = NullNotifier{}

func (NullNotifier) SendTransition(ctx context.Context, rec *status.Record, prev status.Status, operator, reason string) error {
	return nil
}

func (NullNotifier) SendConfigAlert(ctx context.Context, editor, detail string) error {
	return nil
}

func (NullNotifier) SendReport(ctx context.Context, title, body string) error {
	return nil
}

// SlackNotifier posts to a channel via "incoming webhook".
type SlackNotifier struct {
	WebhookURL string
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendTransition(ctx context.Context, rec *status.Record, prev status.Status, operator, reason string) error {
	msg := fmt.Sprintf("Classification update\n`%s`: %s → %s (by %s)\n", rec.Account, prev, rec.Status, operator)
	if reason != "" {
		msg += fmt.Sprintf("Reason: %s\n", reason)
	}
	return n.sendSlackMsg(ctx, msg)
}

func (n *SlackNotifier) SendConfigAlert(ctx context.Context, editor, detail string) error {
	msg := fmt.Sprintf("⚠️ Configuration rejected ⚠️\nLast edited by `%s`. Keeping previous configuration.\n%s\n", editor, detail)
	return n.sendSlackMsg(ctx, msg)
}

func (n *SlackNotifier) SendReport(ctx context.Context, title, body string) error {
	return n.sendSlackMsg(ctx, fmt.Sprintf("*%s*\n%s\n", title, body))
}

type slackWebhookBody struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(slackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
