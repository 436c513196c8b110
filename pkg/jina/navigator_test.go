package jina

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xconmik/buildata-automation/internal/scrape"
)

type stubClient struct {
	reads    []string
	searches []string
	read     func(ctx context.Context, u string) (*ReadResponse, error)
	search   *SearchResponse
}

func (s *stubClient) Read(ctx context.Context, u string) (*ReadResponse, error) {
	s.reads = append(s.reads, u)
	return s.read(ctx, u)
}

func (s *stubClient) Search(_ context.Context, q string) (*SearchResponse, error) {
	s.searches = append(s.searches, q)
	return s.search, nil
}

func TestNavigator_SearchThenProfile(t *testing.T) {
	client := &stubClient{
		search: &SearchResponse{Code: 200, Data: []SearchHit{
			{Title: "Acme Corp - ZoomInfo", URL: "https://www.zoominfo.com/c/acme-corp/123", Description: "Acme Corp headquarters"},
		}},
		read: func(_ context.Context, u string) (*ReadResponse, error) {
			return &ReadResponse{Code: 200, Data: Document{Title: "Acme Corp", Content: "Headquarters: Springfield"}}, nil
		},
	}
	nav := NewNavigator(client, time.Second)
	ctx := context.Background()

	h, err := nav.Open(ctx, "https://www.google.com/search?q=acme.com+zoominfo")
	require.NoError(t, err)
	assert.NotEmpty(t, h)

	page, err := nav.Probe(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.com zoominfo"}, client.searches)
	assert.Contains(t, page.Text, "[Acme Corp - ZoomInfo](https://www.zoominfo.com/c/acme-corp/123)")

	require.NoError(t, nav.Update(ctx, h, "https://www.zoominfo.com/c/acme-corp/123"))
	page, err = nav.Probe(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "https://www.zoominfo.com/c/acme-corp/123", page.URL)
	assert.Equal(t, "Headquarters: Springfield", page.Text)
	assert.Equal(t, []string{"https://www.zoominfo.com/c/acme-corp/123"}, client.reads)

	require.NoError(t, nav.Close(ctx, h))
	_, err = nav.Probe(ctx, h)
	assert.Error(t, err)
	assert.Error(t, nav.Update(ctx, h, "https://example.com"))
}

func TestNavigator_ProbeTimeout(t *testing.T) {
	client := &stubClient{read: func(ctx context.Context, _ string) (*ReadResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	nav := NewNavigator(client, 10*time.Millisecond)

	h, err := nav.Open(context.Background(), "https://www.zoominfo.com/c/acme-corp/123")
	require.NoError(t, err)

	_, err = nav.Probe(context.Background(), h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scrape.ErrProbeTimeout))
}

func TestSearchQuery(t *testing.T) {
	q, ok := searchQuery("https://www.google.com/search?q=acme.com+rocketreach+email")
	assert.True(t, ok)
	assert.Equal(t, "acme.com rocketreach email", q)

	_, ok = searchQuery("https://www.zoominfo.com/c/acme-corp/123")
	assert.False(t, ok)

	_, ok = searchQuery("https://www.google.com/search")
	assert.False(t, ok)
}
