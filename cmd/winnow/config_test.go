package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winnowbot/winnow/engine"
	"github.com/winnowbot/winnow/varstore"
)

type recordingNotifier struct {
	engine.NullNotifier
	lk     sync.Mutex
	Alerts []string
}

func (n *recordingNotifier) SendConfigAlert(ctx context.Context, editor, detail string) error {
	n.lk.Lock()
	defer n.lk.Unlock()
	n.Alerts = append(n.Alerts, editor+": "+detail)
	return nil
}

func TestConfigPollerAlertsEditorOnBadPage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var lk sync.Mutex
	page := `
name: meta
editor: "configeditor"
---
name: badusername
regexes:
  - "^Bot\\d+$"
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lk.Lock()
		defer lk.Unlock()
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	loader := varstore.NewLoader(nil)
	notifier := &recordingNotifier{}
	poller := newConfigPoller(srv.URL, loader, notifier, slog.Default())

	require.NoError(t, poller.FetchOnce(ctx))
	goodRev := loader.Current().Revision()
	assert.Equal("configeditor", loader.Current().GetString("meta", "editor", ""))

	// a page with an unsafe pattern is rejected, the editor hears about it,
	// and the previous variables stay in force
	lk.Lock()
	page = "name: badusername\nregexes:\n  - \"(a+)+b\"\n"
	lk.Unlock()
	assert.Error(poller.FetchOnce(ctx))
	require.Len(t, notifier.Alerts, 1)
	assert.Contains(notifier.Alerts[0], "configeditor")
	assert.Contains(notifier.Alerts[0], "badusername")
	assert.Equal(goodRev, loader.Current().Revision())

	// same broken revision on the next poll does not repeat the alert
	assert.Error(poller.FetchOnce(ctx))
	assert.Len(notifier.Alerts, 1)

	// a different broken revision alerts again
	lk.Lock()
	page = "name: badusername\nregexes:\n  - \"(x+)+y\"\n"
	lk.Unlock()
	assert.Error(poller.FetchOnce(ctx))
	assert.Len(notifier.Alerts, 2)

	// a fixed page loads cleanly with no further noise
	lk.Lock()
	page = "name: badusername\nregexes:\n  - \"^Bot\\\\d+$\"\n"
	lk.Unlock()
	require.NoError(t, poller.FetchOnce(ctx))
	assert.NotEqual(goodRev, loader.Current().Revision())
	assert.Len(notifier.Alerts, 2)
}
