// Package registry pushes locally-originated notification address edits back
// to the external registry. The inbound change feed lives in internal/sync.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	orgmodels "profil/internal/organization/models"
	"profil/pkg/platform/sentinel"
)

// ErrRejected marks a write the registry processed but refused. The caller
// decides whether and when to retry; this client never does.
var ErrRejected = errors.New("registry rejected the address write")

// AddressPayload is the wire shape of one outbound address write.
type AddressPayload struct {
	AddressType      string `json:"addressType"`
	Domain           string `json:"domain"`
	Address          string `json:"address"`
	NotificationName string `json:"notificationName,omitempty"`
}

type writeResult struct {
	BoolResult bool   `json:"boolResult"`
	AddressID  string `json:"addressId"`
	Status     string `json:"status"`
	Details    string `json:"details"`
}

// Client is the registry write-protocol client.
type Client struct {
	http     *http.Client
	endpoint string
	log      *slog.Logger
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

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a write client rooted at the registry update endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("registry update endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse registry endpoint: %w", err)
	}
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Define creates a new address in the registry and returns its registry id.
func (c *Client) Define(ctx context.Context, addr *orgmodels.NotificationAddress) (string, error) {
	res, err := c.post(ctx, c.endpoint+"/define", payloadFor(addr))
	if err != nil {
		return "", err
	}
	return res.AddressID, nil
}

// Replace overwrites the registry's copy of an existing address.
func (c *Client) Replace(ctx context.Context, registryID string, addr *orgmodels.NotificationAddress) error {
	_, err := c.post(ctx, c.endpoint+"/replace/"+url.PathEscape(registryID), payloadFor(addr))
	return err
}

// Remove logically deletes an address in the registry. The protocol expresses
// deletion as a replace with an empty body.
func (c *Client) Remove(ctx context.Context, registryID string) error {
	_, err := c.post(ctx, c.endpoint+"/replace/"+url.PathEscape(registryID), nil)
	return err
}

func payloadFor(addr *orgmodels.NotificationAddress) *AddressPayload {
	return &AddressPayload{
		AddressType:      string(addr.AddressType),
		Domain:           addr.Domain,
		Address:          addr.Address,
		NotificationName: addr.NotificationName,
	}
}

func (c *Client) post(ctx context.Context, target string, payload *AddressPayload) (*writeResult, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode registry payload: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry write %s: %v: %w", target, err, sentinel.ErrUnavailable)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("registry write %s returned %d: %w", target, resp.StatusCode, sentinel.ErrUnavailable)
	}

	var res writeResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	if !res.BoolResult || res.AddressID == "" {
		c.log.Warn("registry refused address write",
			"status", res.Status, "details", res.Details)
		return nil, fmt.Errorf("status %q: %w", res.Status, ErrRejected)
	}
	return &res, nil
}
