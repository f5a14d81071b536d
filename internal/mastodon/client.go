// Package mastodon is a minimal client for the Mastodon REST API:
// reading mention notifications and publishing statuses.
package mastodon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/softbatch/loaf/internal/log"
)

const requestTimeout = 30 * time.Second

var (
	// ErrSourceUnavailable indicates the instance could not be reached
	// while reading notifications.
	ErrSourceUnavailable = errors.New("mastodon instance unavailable")

	// ErrPublishFailed indicates a status could not be posted.
	ErrPublishFailed = errors.New("publishing status failed")
)

// Client talks to one Mastodon instance. Outbound calls are throttled
// client-side to stay under the instance's API limits.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger
}

// NewClient creates a Mastodon API client for the given instance.
func NewClient(baseURL, token string, logger log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("mastodon base URL is required")
	}
	if token == "" {
		return nil, errors.New("mastodon access token is required")
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
		logger:     logger,
	}, nil
}

// Mentions returns mention notifications, newest first as the API
// delivers them.
func (c *Client) Mentions(ctx context.Context) ([]Notification, error) {
	var notifications []Notification
	err := c.get(ctx, "/api/v1/notifications?types[]=mention", &notifications)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return notifications, nil
}

// VerifyCredentials confirms the token works and returns the bot's own
// account.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, "/api/v1/accounts/verify_credentials", &account); err != nil {
		return nil, fmt.Errorf("verifying credentials: %w", err)
	}
	return &account, nil
}

// PostStatus publishes a status, optionally as a reply.
func (c *Client) PostStatus(ctx context.Context, text, inReplyToID string) (*Status, error) {
	form := url.Values{}
	form.Set("status", text)
	if inReplyToID != "" {
		form.Set("in_reply_to_id", inReplyToID)
	}

	var status Status
	if err := c.postForm(ctx, "/api/v1/statuses", form, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	c.logger.Info("published status",
		"status_id", status.ID,
		"in_reply_to", inReplyToID)

	return &status, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return nil
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML flattens status HTML into plain text. Paragraph and line
// break tags become newlines before the remaining tags are dropped.
func StripHTML(s string) string {
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = htmlTag.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}
