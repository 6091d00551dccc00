// Package arxiv fetches paper metadata from the arXiv export API.
package arxiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the arXiv export API query endpoint.
	BaseURL = "http://export.arxiv.org/api/query"

	// DefaultPageSize is the number of entries requested per page.
	DefaultPageSize = 100

	// DefaultDelay is the pause between page requests asked for by the
	// arXiv API terms of use.
	DefaultDelay = 3 * time.Second

	// DefaultEmptyPageRetries is how often an unexpectedly empty page is
	// re-requested before the fetch stops.
	DefaultEmptyPageRetries = 3

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 60 * time.Second
)

// Client is a throttled HTTP client for the arXiv export API. Every page
// request, retries included, waits for the limiter.
type Client struct {
	httpClient       *http.Client
	limiter          *rate.Limiter
	baseURL          string
	pageSize         int
	delay            time.Duration
	emptyPageRetries int
	logger           *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPageSize sets the number of entries requested per page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithDelay sets the fixed pause between page requests.
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.delay = d
	}
}

// WithEmptyPageRetries sets how often an empty page is retried.
func WithEmptyPageRetries(n int) ClientOption {
	return func(c *Client) {
		c.emptyPageRetries = n
	}
}

// WithLogger sets the logger used for page-level diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new arXiv client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		baseURL:          BaseURL,
		pageSize:         DefaultPageSize,
		delay:            DefaultDelay,
		emptyPageRetries: DefaultEmptyPageRetries,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	limit := rate.Inf
	if c.delay > 0 {
		limit = rate.Every(c.delay)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	return c
}

// PageSize returns the configured page size.
func (c *Client) PageSize() int {
	return c.pageSize
}

// Delay returns the configured inter-page delay.
func (c *Client) Delay() time.Duration {
	return c.delay
}

// searchQuery builds the newest-first query for a category.
func (c *Client) searchQuery(category string, start int) string {
	q := url.Values{}
	q.Set("search_query", "cat:"+category)
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("start", strconv.Itoa(start))
	q.Set("max_results", strconv.Itoa(c.pageSize))
	return c.baseURL + "?" + q.Encode()
}

// getPage requests one page. The throttle wait deliberately ignores ctx
// cancellation so the fair-use delay is always honoured.
func (c *Client) getPage(ctx context.Context, category string, start int) (*feed, error) {
	if err := c.limiter.Wait(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.searchQuery(category, start)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.logger.Debug("requesting arXiv page", "category", category, "start", start, "page_size", c.pageSize)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, start); err != nil {
		return nil, err
	}

	return parseFeed(resp.Body, start)
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, start int) error {
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			Start:      start,
		}
	}
	return nil
}
