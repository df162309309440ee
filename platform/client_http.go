package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// HTTPClient talks to a host moderation API over JSON. Transient failures are
// retried by the underlying client; the limiter keeps us inside the host's
// request budget.
type HTTPClient struct {
	Host    string
	Token   string
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(host, token string, requestsPerSecond int) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	return &HTTPClient{
		Host:    host,
		Token:   token,
		client:  rc,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.Host + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var buf []byte
	if body != nil {
		var err error
		buf, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return ErrAccountGone
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform API %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) AccountSummary(ctx context.Context, account string) (*AccountSummary, error) {
	var out AccountSummary
	err := c.do(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(account), nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) History(ctx context.Context, account string, limit int) ([]*Content, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	q := url.Values{"limit": []string{strconv.Itoa(limit)}, "sort": []string{"new"}}
	var out []*Content
	err := c.do(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(account)+"/history", q, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) RecentAccounts(ctx context.Context, community string, limit int) ([]string, error) {
	q := url.Values{"limit": []string{strconv.Itoa(limit)}}
	var out []string
	err := c.do(ctx, http.MethodGet, "/api/communities/"+url.PathEscape(community)+"/recent-authors", q, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) RecentContent(ctx context.Context, community string, limit int) ([]*Content, error) {
	q := url.Values{"limit": []string{strconv.Itoa(limit)}, "sort": []string{"new"}}
	var out []*Content
	err := c.do(ctx, http.MethodGet, "/api/communities/"+url.PathEscape(community)+"/content", q, nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Ban(ctx context.Context, community, account, reason string) error {
	body := map[string]string{"account": account, "reason": reason}
	return c.do(ctx, http.MethodPost, "/api/communities/"+url.PathEscape(community)+"/bans", nil, body, nil)
}

func (c *HTTPClient) CreateTrackingPost(ctx context.Context, community, account string) (string, error) {
	body := map[string]string{"title": "overview for " + account}
	var out struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/communities/"+url.PathEscape(community)+"/posts", nil, body, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *HTTPClient) SetTrackingFlair(ctx context.Context, postID, flairID string) error {
	body := map[string]string{"flairTemplateId": flairID}
	return c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/flair", nil, body, nil)
}

func (c *HTTPClient) AccountExists(ctx context.Context, account string) (bool, error) {
	var out AccountSummary
	err := c.do(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(account), nil, nil, &out)
	if err == ErrAccountGone {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, account, subject, body string) error {
	payload := map[string]string{"to": account, "subject": subject, "body": body}
	return c.do(ctx, http.MethodPost, "/api/messages", nil, payload, nil)
}
