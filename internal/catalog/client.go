// Package catalog talks to the remote listing catalog and the enquiry/bid API.
package catalog

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
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"propfeed/internal/model"
)

const maxBodySize = 5 * 1024 * 1024

// ErrBidRejected is returned when the API refuses a bid update.
var ErrBidRejected = errors.New("bid rejected")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a catalog and enquiry API client. A Client is safe for
// concurrent use.
type Client struct {
	baseURL   string
	client    HTTPClient
	token     string
	userAgent string
	retries   uint64
	backoff   time.Duration
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets how many times a failed GET is retried.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

// WithBackoff sets the base delay of the exponential retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, client HTTPClient, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		userAgent: "PropFeed/1.0",
		retries:   2,
		backoff:   200 * time.Millisecond,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// FetchPage fetches one listing page. Both {"data": [...]} and a bare array
// are accepted; any other shape yields an empty page. Elements that are not
// objects are dropped but still count towards the page size.
func (c *Client) FetchPage(ctx context.Context, page int) (model.Page, error) {
	body, err := c.get(ctx, "fetch page", "listings", url.Values{"page": {strconv.Itoa(page)}})
	if err != nil {
		return model.Page{}, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		c.log.Warn("listing page is not JSON", "page", page, "kind", model.KindUnexpectedShape, "error", err)
		return model.Page{}, nil
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		data, ok := v["data"].([]any)
		if !ok {
			c.log.Warn("listing page has no data array", "page", page, "kind", model.KindUnexpectedShape)
			return model.Page{}, nil
		}
		items = data
	default:
		c.log.Warn("unexpected listing page", "page", page, "kind", model.KindUnexpectedShape)
		return model.Page{}, nil
	}

	records := make([]model.RawRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			c.log.Warn("drop listing", "page", page, "index", i, "kind", model.KindParseFailure)
			continue
		}
		records = append(records, model.RawRecord(obj))
	}
	return model.Page{Records: records, Size: len(items)}, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	var body []byte
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		data, err := c.do(ctx, op, http.MethodGet, path, query, nil)
		if err != nil {
			if model.KindOf(err) == model.KindNetworkFailure && ctx.Err() == nil {
				c.log.Debug("retrying request", "op", op, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do performs one request and classifies its failure.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, model.NewError(model.KindNetworkFailure, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, model.NewError(model.KindNetworkFailure, op, fmt.Errorf("read body: %w", err))
	}

	if err := statusError(op, resp.StatusCode); err != nil {
		return body, err
	}
	return body, nil
}

func statusError(op string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return model.NewError(model.KindAuthExpired, op, fmt.Errorf("status %d", code))
	case code == http.StatusConflict:
		return fmt.Errorf("%s: %w: status %d", op, ErrBidRejected, code)
	default:
		return model.NewError(model.KindNetworkFailure, op, fmt.Errorf("unexpected status %d", code))
	}
}
