// Package browser drives a Chrome instance over the DevTools protocol. It
// provides the scrape.Navigator used for search and profile pages, and the
// FormPage that fills the destination form and answers the dropdown
// resolver's probes.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures the Chrome process.
type Options struct {
	Headless  bool
	UserAgent string
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
	// RemoteURL attaches to an already running Chrome (a DevTools websocket
	// URL) instead of starting one.
	RemoteURL string
}

// Browser owns the allocator and the root browser context. Tabs opened by
// the Navigator and the FormPage are children of it.
type Browser struct {
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	log       *zap.Logger
}

// New starts (or attaches to) Chrome. The browser lives until Close or until
// parent is cancelled.
func New(parent context.Context, opts Options) (*Browser, error) {
	log := zap.L().With(zap.String("component", "browser"))

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, execOptions(opts)...)
	}

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	log.Info("browser started",
		zap.Bool("headless", opts.Headless),
		zap.Bool("remote", opts.RemoteURL != ""),
	)
	return &Browser{
		ctx: ctx,
		cancel: func() {
			cancel()
			allocCancel()
		},
		log: log,
	}, nil
}

func execOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

// newTab opens a fresh tab and returns its context. Cancelling the context
// closes the tab. The target is allocated here, on the tab context itself,
// so later runs with shorter-lived contexts never own it.
func (b *Browser) newTab() (context.Context, context.CancelFunc, error) {
	ctx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, nil, eris.Wrap(err, "browser: open tab")
	}
	return ctx, cancel, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.log.Info("browser closed")
	})
}

// run executes actions in tab, bounded by ctx as well as the tab's own
// lifetime.
func run(ctx, tab context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// script renders a call of fn with JSON-encoded arguments.
func script(fn string, args ...any) string {
	enc := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			b = []byte("null")
		}
		enc[i] = string(b)
	}
	return "(" + fn + ")(" + strings.Join(enc, ", ") + ")"
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
