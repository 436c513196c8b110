package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/resilience"
	"github.com/xconmik/buildata-automation/internal/scrape"
)

var _ scrape.Navigator = (*Navigator)(nil)

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Navigator is a scrape.Navigator where every handle is its own Chrome tab.
type Navigator struct {
	b        *Browser
	timeout  time.Duration
	language string

	mu   sync.Mutex
	tabs map[scrape.Handle]tab
	log  *zap.Logger
}

// NewNavigator returns a Navigator on b. timeout bounds each Probe; zero
// means 30 seconds.
func NewNavigator(b *Browser, timeout time.Duration) *Navigator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Navigator{
		b:        b,
		timeout:  timeout,
		language: "en-US,en;q=0.9",
		tabs:     make(map[scrape.Handle]tab),
		log:      zap.L().With(zap.String("component", "browser.navigator")),
	}
}

// Open creates a tab and starts loading url. It does not wait for the page
// to settle; callers wait and then Probe.
func (n *Navigator) Open(ctx context.Context, url string) (scrape.Handle, error) {
	tctx, cancel, err := n.b.newTab()
	if err != nil {
		return "", err
	}
	err = run(ctx, tctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": n.language}),
		chromedp.Navigate(url),
	)
	if err != nil {
		cancel()
		return "", n.navErr(ctx, err, url)
	}

	h := scrape.Handle(uuid.NewString())
	n.mu.Lock()
	n.tabs[h] = tab{ctx: tctx, cancel: cancel}
	n.mu.Unlock()
	n.log.Debug("tab opened", zap.String("handle", string(h)), zap.String("url", url))
	return h, nil
}

// Update navigates an open tab to url.
func (n *Navigator) Update(ctx context.Context, h scrape.Handle, url string) error {
	t, err := n.tab(h)
	if err != nil {
		return err
	}
	if err := run(ctx, t.ctx, chromedp.Navigate(url)); err != nil {
		return n.navErr(ctx, err, url)
	}
	return nil
}

// Close closes the tab. Closing an unknown handle is a no-op.
func (n *Navigator) Close(_ context.Context, h scrape.Handle) error {
	n.mu.Lock()
	t, ok := n.tabs[h]
	delete(n.tabs, h)
	n.mu.Unlock()
	if ok {
		t.cancel()
	}
	return nil
}

// Probe reads the tab's location, title, markup and visible text once the
// body is ready.
func (n *Navigator) Probe(ctx context.Context, h scrape.Handle) (*scrape.Page, error) {
	t, err := n.tab(h)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var p scrape.Page
	err = run(pctx, t.ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&p.URL),
		chromedp.Title(&p.Title),
		chromedp.OuterHTML("html", &p.HTML, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &p.Text),
	)
	switch {
	case err == nil:
		return &p, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case isTimeout(err):
		return nil, eris.Wrapf(scrape.ErrProbeTimeout, "browser: probe %s", h)
	default:
		return nil, eris.Wrapf(scrape.ErrNavigation, "browser: probe %s: %v", h, err)
	}
}

// Len returns the number of open tabs.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tabs)
}

func (n *Navigator) tab(h scrape.Handle) (tab, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.tabs[h]
	if !ok {
		return tab{}, eris.Wrapf(scrape.ErrNavigation, "browser: unknown handle %s", h)
	}
	return t, nil
}

func (n *Navigator) navErr(ctx context.Context, err error, url string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return resilience.NewTransientError(eris.Wrapf(err, "browser: navigate %s", url), 0)
}
