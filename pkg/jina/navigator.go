package jina

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/xconmik/buildata-automation/internal/scrape"
)

// Navigator implements scrape.Navigator over the reader and search APIs.
// Search-engine result URLs are answered by Search; every other URL is
// rendered by Read. Pages are fetched lazily on Probe.
type Navigator struct {
	client  Client
	timeout time.Duration

	mu    sync.Mutex
	pages map[scrape.Handle]string
}

var _ scrape.Navigator = (*Navigator)(nil)

// NewNavigator wraps client. timeout bounds each Probe; zero means 30s.
func NewNavigator(client Client, timeout time.Duration) *Navigator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Navigator{client: client, timeout: timeout, pages: make(map[scrape.Handle]string)}
}

// Open registers target under a new handle.
func (n *Navigator) Open(_ context.Context, target string) (scrape.Handle, error) {
	h := scrape.Handle(uuid.NewString())
	n.mu.Lock()
	n.pages[h] = target
	n.mu.Unlock()
	return h, nil
}

// Update points h at target.
func (n *Navigator) Update(_ context.Context, h scrape.Handle, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.pages[h]; !ok {
		return eris.Errorf("jina: unknown handle %s", h)
	}
	n.pages[h] = target
	return nil
}

// Close forgets h.
func (n *Navigator) Close(_ context.Context, h scrape.Handle) error {
	n.mu.Lock()
	delete(n.pages, h)
	n.mu.Unlock()
	return nil
}

// Probe fetches the page h currently points at.
func (n *Navigator) Probe(ctx context.Context, h scrape.Handle) (*scrape.Page, error) {
	n.mu.Lock()
	target, ok := n.pages[h]
	n.mu.Unlock()
	if !ok {
		return nil, eris.Errorf("jina: unknown handle %s", h)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var (
		page *scrape.Page
		err  error
	)
	if q, isSearch := searchQuery(target); isSearch {
		page, err = n.search(ctx, target, q)
	} else {
		page, err = n.read(ctx, target)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, eris.Wrapf(scrape.ErrProbeTimeout, "jina: %s", target)
	}
	return page, err
}

func (n *Navigator) read(ctx context.Context, target string) (*scrape.Page, error) {
	resp, err := n.client.Read(ctx, target)
	if err != nil {
		return nil, err
	}
	u := resp.Data.URL
	if u == "" {
		u = target
	}
	return &scrape.Page{URL: u, Title: resp.Data.Title, HTML: resp.Data.HTML, Text: resp.Data.Content}, nil
}

// search renders results as a markdown list so link extraction works the
// same as on a reader page.
func (n *Navigator) search(ctx context.Context, target, q string) (*scrape.Page, error) {
	resp, err := n.client.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for i, r := range resp.Data {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[" + r.Title + "](" + r.URL + ")\n")
		if r.Description != "" {
			b.WriteString(r.Description + "\n")
		}
		if r.Content != "" {
			b.WriteString(r.Content + "\n")
		}
	}
	return &scrape.Page{URL: target, Title: q, Text: b.String()}, nil
}

// searchQuery returns the q parameter of a search results URL.
func searchQuery(target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil || !strings.HasSuffix(u.Path, "/search") {
		return "", false
	}
	q := u.Query().Get("q")
	return q, q != ""
}
