package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	appLog "github.com/Sectonic/Automation/internal/log"
)

const defaultBaseURL = "https://api.notion.com/v1"

// APIError is a non-2xx response from the remote store.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion: HTTP %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client. Zero values fall back to the documented
// defaults.
type Options struct {
	APIVersion  string        // Notion-Version header, default "2025-09-03"
	MaxRetries  int           // default 5
	BaseBackoff time.Duration // default 1s
	BaseURL     string        // overridable for tests
}

// Client executes requests against the Notion API with retry/backoff on
// rate limits and server errors. It keeps no state between calls other
// than the reusable HTTP connection.
type Client struct {
	apiKey      string
	apiVersion  string
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	httpClient  *http.Client

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(time.Duration)
}

// NewClient creates a Client authenticated with the given API key.
func NewClient(apiKey string, opts Options) *Client {
	if opts.APIVersion == "" {
		opts.APIVersion = "2025-09-03"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	return &Client{
		apiKey:      apiKey,
		apiVersion:  opts.APIVersion,
		baseURL:     opts.BaseURL,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		sleep:       time.Sleep,
	}
}

// request performs one API call, retrying per policy:
//
//   - 429: sleep for the server's Retry-After when parseable, otherwise
//     base*2^attempt, never less than base; increment the attempt.
//   - 5xx with attempts left: sleep base*2^attempt, increment.
//   - any other non-2xx: fail immediately.
//
// The attempt counter is shared between both retry triggers; after each
// sleep, exhausting maxRetries fails with the underlying HTTP error.
func (c *Client) request(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("notion: encode payload: %w", err)
		}
	}

	attempt := 0
	for {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Notion-Version", c.apiVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("notion: %s %s: %w", method, path, err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("notion: read response: %w", readErr)
		}

		httpErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := c.backoff(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, perr := strconv.ParseFloat(ra, 64); perr == nil {
					wait = time.Duration(secs * float64(time.Second))
				}
			}
			wait = max(wait, c.baseBackoff)
			appLog.Info("notion rate limited, backing off", "path", path, "attempt", attempt, "wait", wait)
			c.sleep(wait)
			attempt++
		case resp.StatusCode >= 500 && resp.StatusCode < 600 && attempt < c.maxRetries:
			wait := c.backoff(attempt)
			appLog.Info("notion server error, retrying", "path", path, "status", resp.StatusCode, "attempt", attempt, "wait", wait)
			c.sleep(wait)
			attempt++
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return json.RawMessage(data), nil
		default:
			return nil, httpErr
		}

		if attempt >= c.maxRetries {
			return nil, httpErr
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.baseBackoff * (1 << attempt)
}

// QueryDatabase queries a data source with an optional filter and
// returns the matching pages.
func (c *Client) QueryDatabase(ctx context.Context, dataSourceID string, filter Filter) ([]Page, error) {
	payload := map[string]any{}
	if filter != nil {
		payload["filter"] = filter
	}

	raw, err := c.request(ctx, http.MethodPost, "/data_sources/"+dataSourceID+"/query", payload)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Results []Page `json:"results"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("notion: decode query response: %w", err)
	}
	return decoded.Results, nil
}

// CreatePage creates a new page in a data source.
func (c *Client) CreatePage(ctx context.Context, dataSourceID string, properties Properties) (Page, error) {
	payload := map[string]any{
		"parent": map[string]any{
			"data_source_id": dataSourceID,
		},
		"properties": properties,
	}

	raw, err := c.request(ctx, http.MethodPost, "/pages", payload)
	if err != nil {
		return Page{}, err
	}

	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return Page{}, fmt.Errorf("notion: decode page: %w", err)
	}
	return page, nil
}

// UpdatePage updates properties of an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties Properties) (Page, error) {
	payload := map[string]any{"properties": properties}

	raw, err := c.request(ctx, http.MethodPatch, "/pages/"+pageID, payload)
	if err != nil {
		return Page{}, err
	}

	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return Page{}, fmt.Errorf("notion: decode page: %w", err)
	}
	return page, nil
}
