// Package notion reads pages from the Notion API and exposes them as
// source documents for the knowledge sync.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/softbatch/loaf/internal/log"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
	requestTimeout = 30 * time.Second
)

// ErrSourceUnavailable indicates the Notion API could not be reached
// or rejected the request.
var ErrSourceUnavailable = errors.New("knowledge source unavailable")

// Client is a lightweight Notion API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// NewClient creates a Notion API client from an integration token.
func NewClient(token string, logger log.Logger, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, errors.New("notion token is required")
	}

	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Search returns all pages accessible to the integration, following
// pagination. Databases in the result set are skipped.
func (c *Client) Search(ctx context.Context, query string) ([]Page, error) {
	var allPages []Page
	startCursor := ""

	for {
		req := SearchRequest{
			Query: query,
			Filter: &SearchFilter{
				Property: "object",
				Value:    "page",
			},
			PageSize:    100,
			StartCursor: startCursor,
		}

		var resp SearchResponse
		if err := c.makeRequest(ctx, http.MethodPost, "/v1/search", req, &resp); err != nil {
			return nil, fmt.Errorf("searching pages: %w", err)
		}

		for _, raw := range resp.Results {
			var objCheck struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(raw, &objCheck); err != nil || objCheck.Object != "page" {
				continue
			}

			var page Page
			if err := json.Unmarshal(raw, &page); err != nil {
				c.logger.Warn("skipping unparseable search result", "error", err)
				continue
			}
			allPages = append(allPages, page)
		}

		if !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	return allPages, nil
}

// GetPage retrieves a single page by ID.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.makeRequest(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("getting page %s: %w", pageID, err)
	}
	return &page, nil
}

// GetBlockChildren retrieves all child blocks of a block, following
// pagination and recursing into nested blocks.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	startCursor := ""

	for {
		path := "/v1/blocks/" + blockID + "/children"
		if startCursor != "" {
			path += "?start_cursor=" + startCursor
		}

		var resp BlockChildrenResponse
		if err := c.makeRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("getting children of block %s: %w", blockID, err)
		}

		blocks = append(blocks, resp.Results...)
		if !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	var expanded []Block
	for _, block := range blocks {
		expanded = append(expanded, block)
		if !block.HasChildren {
			continue
		}
		children, err := c.GetBlockChildren(ctx, block.ID)
		if err != nil {
			c.logger.Warn("skipping nested blocks", "block_id", block.ID, "error", err)
			continue
		}
		expanded = append(expanded, children...)
	}

	return expanded, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrSourceUnavailable, resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return nil
}
