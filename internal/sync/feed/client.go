// Package feed pulls paginated change-log pages from external registries.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"profil/internal/sync/models"
)

// Feed failures are fatal for the current run; the scheduler retries the whole
// job later and the checkpoint stays put.
var (
	// ErrFeedUnavailable signals a non-success HTTP status from the registry.
	ErrFeedUnavailable = errors.New("change feed unavailable")
	// ErrFeedCorrupt signals a response body that could not be deserialized.
	ErrFeedCorrupt = errors.New("change feed corrupt")
)

// Client fetches change-feed pages over HTTP.
type Client struct {
	http *http.Client
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient constructs a feed client with a conservative default timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage GETs one feed page. The pageURL is either a freshly built initial
// URL or the nextPage cursor of the previous page.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*models.ChangeFeedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("feed returned non-success status", "status", resp.StatusCode, "url", pageURL)
		return nil, fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	var page models.ChangeFeedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedCorrupt, err)
	}
	return &page, nil
}

// SinceURL builds the initial URL for a timestamp-based feed. A zero since
// (cold start) omits the parameter, requesting the full history.
func SinceURL(endpoint string, pageSize int, since time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse feed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("pageSize", strconv.Itoa(pageSize))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SequenceURL builds the initial URL for a sequence-based feed. A negative
// fromChangeID (cold start) omits the parameter.
func SequenceURL(endpoint string, pageSize int, fromChangeID int64) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse feed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("pageSize", strconv.Itoa(pageSize))
	if fromChangeID >= 0 {
		q.Set("fromChangeId", strconv.FormatInt(fromChangeID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
