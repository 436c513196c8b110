// Package jina renders pages and search results through the Jina reader
// and search endpoints, and adapts them to scrape.Navigator for hosts
// without a browser.
package jina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/xconmik/buildata-automation/internal/resilience"
)

const (
	defaultReaderURL = "https://r.jina.ai"
	defaultSearchURL = "https://s.jina.ai"
	defaultTimeout   = 30 * time.Second
)

// Client renders one URL or one search query.
type Client interface {
	Read(ctx context.Context, target string) (*ReadResponse, error)
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// ReadResponse wraps a rendered page.
type ReadResponse struct {
	Code int      `json:"code"`
	Data Document `json:"data"`
}

// Document is a page as rendered by the reader. HTML is only filled when
// the client asks for the html format.
type Document struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	HTML    string `json:"html"`
}

// SearchResponse wraps the hits for one query. A query with no hits has an
// empty Data.
type SearchResponse struct {
	Code int         `json:"code"`
	Data []SearchHit `json:"data"`
}

// SearchHit is one search result.
type SearchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// StatusError is a non-OK reply that was not retried, or still failed on
// the last attempt.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	if body == "" {
		return fmt.Sprintf("jina: %s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("jina: %s: status %d: %s", e.Op, e.Code, body)
}

// Option configures NewClient.
type Option func(*httpClient)

// WithBaseURL points Read at another reader endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.readerURL = strings.TrimRight(u, "/")
		}
	}
}

// WithSearchBaseURL points Search at another search endpoint.
func WithSearchBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.searchURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry replaces the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithRateLimit caps attempts per second across Read and Search.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithReturnFormat selects the reader output: markdown, html or text.
func WithReturnFormat(format string) Option {
	return func(c *httpClient) {
		if format != "" {
			c.format = format
		}
	}
}

type httpClient struct {
	key       string
	readerURL string
	searchURL string
	format    string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
}

// NewClient returns a Client authenticated with key.
func NewClient(key string, opts ...Option) Client {
	c := &httpClient{
		key:       key,
		readerURL: defaultReaderURL,
		searchURL: defaultSearchURL,
		format:    "markdown",
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("jina", "request")
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, target string) (*ReadResponse, error) {
	hdr := http.Header{}
	hdr.Set("X-Return-Format", c.format)

	var out ReadResponse
	if err := c.get(ctx, "read", c.readerURL+"/"+target, hdr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search answers 422, which the endpoint uses for "no results", with an
// empty response.
func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	var out SearchResponse
	err := c.get(ctx, "search", c.searchURL+"/"+url.PathEscape(query), nil, &out)

	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: se.Code}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// get issues one GET with retries and decodes a 200 body into out.
func (c *httpClient) get(ctx context.Context, op, endpoint string, hdr http.Header, out any) error {
	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "jina: %s: wait for limiter", op)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "jina: %s: build request", op)
		}
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Accept", "application/json")
		for k, v := range hdr {
			req.Header[k] = v
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, resilience.NewTransientError(eris.Wrapf(err, "jina: %s", op), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "jina: %s: read body", op)
		}
		if resp.StatusCode != http.StatusOK {
			se := &StatusError{Op: op, Code: resp.StatusCode, Body: string(data)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(se, resp.StatusCode)
			}
			return nil, se
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "jina: %s: unmarshal response", op)
	}
	return nil
}
