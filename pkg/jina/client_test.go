package jina

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xconmik/buildata-automation/internal/resilience"
)

// noBackoff keeps the retry attempts but sleeps on a manual clock.
func noBackoff() Option {
	cfg := resilience.DefaultRetryConfig()
	cfg.Clock = resilience.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return WithRetry(cfg)
}

func serveJSON(t *testing.T, v any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}
}

func TestRead_RendersTarget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "/https://www.zoominfo.com/c/acme/1", r.URL.Path)
		serveJSON(t, ReadResponse{Code: 200, Data: Document{
			Title:   "Acme Corp - ZoomInfo",
			URL:     "https://www.zoominfo.com/c/acme/1",
			Content: "Headquarters: 123 Main St, Springfield, IL",
		}})(w, r)
	}))
	defer srv.Close()

	c := NewClient("key-1", WithBaseURL(srv.URL+"/"), noBackoff())
	got, err := c.Read(context.Background(), "https://www.zoominfo.com/c/acme/1")

	require.NoError(t, err)
	assert.Equal(t, "Acme Corp - ZoomInfo", got.Data.Title)
	assert.Contains(t, got.Data.Content, "Springfield")
}

func TestRead_HTMLFormat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "html", r.Header.Get("X-Return-Format"))
		serveJSON(t, ReadResponse{Code: 200, Data: Document{HTML: "<p>Acme</p>"}})(w, r)
	}))
	defer srv.Close()

	c := NewClient("key-1", WithBaseURL(srv.URL), WithReturnFormat("html"), noBackoff())
	got, err := c.Read(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "<p>Acme</p>", got.Data.HTML)
}

func TestRead_StatusHandling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		attempts int32
	}{
		{"not found is not retried", http.StatusNotFound, 1},
		{"forbidden is not retried", http.StatusForbidden, 1},
		{"rate limited until exhausted", http.StatusTooManyRequests, 3},
		{"unavailable until exhausted", http.StatusServiceUnavailable, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()

			c := NewClient("key-1", WithBaseURL(srv.URL), noBackoff())
			_, err := c.Read(context.Background(), "https://acme.com")

			require.Error(t, err)
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, "read", se.Op)
			assert.Equal(t, tt.attempts, calls.Load())
		})
	}
}

func TestRead_RecoversAfterTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		serveJSON(t, ReadResponse{Code: 200, Data: Document{Title: "Acme"}})(w, r)
	}))
	defer srv.Close()

	c := NewClient("key-1", WithBaseURL(srv.URL), noBackoff())
	got, err := c.Read(context.Background(), "https://acme.com")

	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Data.Title)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRead_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":`))
	}))
	defer srv.Close()

	c := NewClient("key-1", WithBaseURL(srv.URL), noBackoff())
	_, err := c.Read(context.Background(), "https://acme.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRead_CancelledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("key-1", WithBaseURL(srv.URL), noBackoff())
	_, err := c.Read(ctx, "https://acme.com")

	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestSearch_ReturnsHits(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme.com zoominfo", r.URL.Path)
		assert.Empty(t, r.Header.Get("X-Return-Format"))
		serveJSON(t, SearchResponse{Code: 200, Data: []SearchHit{
			{Title: "Acme Corp - ZoomInfo", URL: "https://www.zoominfo.com/c/acme/1", Description: "Acme headquarters"},
		}})(w, r)
	}))
	defer srv.Close()

	c := NewClient("key-1", WithSearchBaseURL(srv.URL), noBackoff())
	got, err := c.Search(context.Background(), "acme.com zoominfo")

	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "https://www.zoominfo.com/c/acme/1", got.Data[0].URL)
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("key-1", WithSearchBaseURL(srv.URL), noBackoff())
	got, err := c.Search(context.Background(), "no such company")

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Code)
	assert.Empty(t, got.Data)
}

func TestSearch_RetriesServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		serveJSON(t, SearchResponse{Code: 200, Data: []SearchHit{{Title: "Acme"}}})(w, r)
	}))
	defer srv.Close()

	c := NewClient("key-1", WithSearchBaseURL(srv.URL), noBackoff())
	got, err := c.Search(context.Background(), "acme")

	require.NoError(t, err)
	assert.Len(t, got.Data, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestNewClient_Options(t *testing.T) {
	t.Parallel()

	c := NewClient("key-1").(*httpClient)
	assert.Equal(t, defaultReaderURL, c.readerURL)
	assert.Equal(t, defaultSearchURL, c.searchURL)
	assert.Equal(t, "markdown", c.format)
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	assert.Equal(t, 3, c.retry.MaxAttempts)
	assert.NotNil(t, c.retry.OnRetry)

	c = NewClient("key-1",
		WithBaseURL(""),
		WithReturnFormat(""),
		WithSearchBaseURL("https://search.test/"),
		WithTimeout(5*time.Second),
		WithRateLimit(2),
	).(*httpClient)
	assert.Equal(t, defaultReaderURL, c.readerURL)
	assert.Equal(t, "markdown", c.format)
	assert.Equal(t, "https://search.test", c.searchURL)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
	assert.InDelta(t, 2.0, float64(c.limiter.Limit()), 0.001)
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "jina: read: status 404", (&StatusError{Op: "read", Code: 404}).Error())
	assert.Equal(t, "jina: search: status 500: boom", (&StatusError{Op: "search", Code: 500, Body: " boom\n"}).Error())
}
