// Package peoply is the HTTP client for peoply.app: one-shot organization
// resolution against the web frontend and repeated incremental event
// fetches against the JSON API.
package peoply

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL    = "https://peoply.app"
	defaultAPIBaseURL = "https://api.peoply.app"

	// requestTimeout bounds every attempt end to end. There are no
	// client-side retries — the scheduler's next tick is the retry.
	requestTimeout = 10 * time.Second

	// browserUserAgent is sent on frontend requests; the org page is
	// server-rendered for browsers only.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/141.0.0.0 Safari/537.36"

	// botUserAgent identifies the mirror honestly on API requests.
	botUserAgent = "SamTheScraper/1.0 (+https://github.com/ifi-progsys/sam)"
)

// RawEvent is one event payload as the API returns it. Pointer fields
// distinguish absent keys from empty values; the reconciler applies the
// defaulting rules.
type RawEvent struct {
	URLID        *string `json:"urlId"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	StartDate    *string `json:"startDate"`
	UpdatedAt    *string `json:"updatedAt"`
	LocationName *string `json:"locationName"`
}

// Client performs the two peoply.app interactions. It owns its HTTP
// client; Close releases idle connections.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiBaseURL string
	logger     *slog.Logger
}

// NewClient creates a client against the production peoply.app endpoints.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		apiBaseURL: defaultAPIBaseURL,
		logger:     slog.Default().With("component", "peoply-client"),
	}
}

// NewClientWithBaseURLs creates a client against custom endpoints.
// Useful for testing with httptest servers.
func NewClientWithBaseURLs(baseURL, apiBaseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	c.apiBaseURL = apiBaseURL
	return c
}

// EventLink returns the public page for an event id.
func (c *Client) EventLink(id string) string {
	return c.baseURL + "/events/" + id
}

// FetchEventsSince queries the API for events of one organization whose
// modification timestamp lies above the watermark. The API returns either
// a JSON array or a bare object; both are normalized to a slice, order
// preserved.
func (c *Client) FetchEventsSince(ctx context.Context, orgID, watermark string) ([]RawEvent, error) {
	q := url.Values{}
	q.Set("afterDate", watermark)
	q.Set("organizationId", orgID)
	endpoint := c.apiBaseURL + "/events?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", botUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET /events: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: GET /events returned %d", ErrHTTP, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read /events body: %v", ErrTransport, err)
	}

	events, err := decodeEvents(body)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// decodeEvents accepts both response shapes the API has been observed to
// produce: a JSON array of events or one bare event object.
func decodeEvents(body []byte) ([]RawEvent, error) {
	var list []RawEvent
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var single RawEvent
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("%w: /events body is neither array nor object: %v", ErrJSON, err)
	}
	return []RawEvent{single}, nil
}

// Close releases the client's idle connections. The client must not be
// used after Close.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
