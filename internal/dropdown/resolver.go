// Package dropdown selects one item from a searchable, lazily rendered
// single-select list. The Resolver walks a bounded state machine over a
// Probe so every wait is explicit and testable with a manual clock.
package dropdown

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/resilience"
)

// State is a step of the selection state machine.
type State int

const (
	Closed State = iota
	Opening
	WaitingForPanel
	Searching
	WaitingForFilteredResults
	Selecting
	Confirmed
	Failed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case WaitingForPanel:
		return "waiting_for_panel"
	case Searching:
		return "searching"
	case WaitingForFilteredResults:
		return "waiting_for_results"
	case Selecting:
		return "selecting"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Trigger is a way of opening the control.
type Trigger string

const (
	TriggerClick     Trigger = "click"
	TriggerEnter     Trigger = "enter"
	TriggerArrowDown Trigger = "arrow_down"
)

// Scope is where a search field is looked for.
type Scope string

const (
	ScopeListRegion Scope = "list_region"
	ScopePanel      Scope = "panel"
	ScopeDocument   Scope = "document"
)

// Control identifies the dropdown on the page.
type Control struct {
	// Label is the visible label of the form group holding the toggle.
	Label string
	// Selector is tried when no label matches.
	Selector string
}

func (c Control) String() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Selector
}

// Probe is the page surface the Resolver drives. Implementations report
// absence with false rather than an error; errors are reserved for a broken
// page connection.
type Probe interface {
	HasControl(ctx context.Context, c Control) (bool, error)
	Trigger(ctx context.Context, c Control, t Trigger) error
	PanelOpen(ctx context.Context) (bool, error)
	// FocusSearch focuses and clears the search field within scope.
	FocusSearch(ctx context.Context, scope Scope) (bool, error)
	TypeKey(ctx context.Context, key string) error
	// Candidates returns the visible item texts in list order.
	Candidates(ctx context.Context) ([]string, error)
	// Select scrolls item index into view and activates it.
	Select(ctx context.Context, index int) error
}

// Failure reasons.
const (
	ReasonButtonNotFound      = "button not found"
	ReasonPanelNotFound       = "panel not found"
	ReasonSearchFieldNotFound = "search field not found"
	ReasonNoMatch             = "no match for query"
	ReasonSelectFailed        = "select failed"
)

// SelectionError reports a selection that ended in Failed. State is the
// step that failed.
type SelectionError struct {
	Control string
	Query   string
	State   State
	Reason  string
	Err     error
}

func (e *SelectionError) Error() string {
	msg := fmt.Sprintf("dropdown: %s %q failed while %s: %s", e.Control, e.Query, e.State, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SelectionError) Unwrap() error { return e.Err }

// Config bounds each wait.
type Config struct {
	Triggers  []Trigger
	OpenWait  time.Duration
	Panel     resilience.PollPolicy
	Results   resilience.PollPolicy
	Keystroke time.Duration
	Settle    time.Duration
	Clock     resilience.Clock
}

// DefaultConfig returns the waits the destination form needs.
func DefaultConfig() Config {
	return Config{
		Triggers:  []Trigger{TriggerClick, TriggerEnter, TriggerArrowDown},
		OpenWait:  time.Second,
		Panel:     resilience.PollPolicy{MaxAttempts: 20, Interval: 250 * time.Millisecond},
		Results:   resilience.PollPolicy{MaxAttempts: 60, Interval: 200 * time.Millisecond},
		Keystroke: 30 * time.Millisecond,
		Settle:    2 * time.Second,
		Clock:     resilience.SystemClock{},
	}
}

// Resolver runs selections. It is not safe for concurrent use; one page has
// one open dropdown at a time.
type Resolver struct {
	probe   Probe
	cfg     Config
	log     *zap.Logger
	observe func(control string, ok bool)
}

// NewResolver creates a Resolver. Zero fields of cfg take DefaultConfig
// values.
func NewResolver(p Probe, cfg Config) *Resolver {
	def := DefaultConfig()
	if len(cfg.Triggers) == 0 {
		cfg.Triggers = def.Triggers
	}
	if cfg.Panel.MaxAttempts <= 0 {
		cfg.Panel = def.Panel
	}
	if cfg.Results.MaxAttempts <= 0 {
		cfg.Results = def.Results
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	return &Resolver{
		probe: p,
		cfg:   cfg,
		log:   zap.L().With(zap.String("component", "dropdown")),
	}
}

// OnResult registers a callback invoked once per Select with its outcome.
func (r *Resolver) OnResult(fn func(control string, ok bool)) {
	r.observe = fn
}

type run struct {
	c     Control
	query string
	state State
	log   *zap.Logger
}

func (x *run) to(s State) {
	x.log.Debug("dropdown transition", zap.Stringer("from", x.state), zap.Stringer("to", s))
	x.state = s
}

func (x *run) fail(reason string, err error) error {
	failed := x.state
	x.to(Failed)
	x.log.Warn("dropdown selection failed", zap.Stringer("state", failed), zap.String("reason", reason), zap.Error(err))
	return &SelectionError{Control: x.c.String(), Query: x.query, State: failed, Reason: reason, Err: err}
}

// Select opens c, searches for query and selects the best match. It returns
// the match on Confirmed and a *SelectionError on Failed.
func (r *Resolver) Select(ctx context.Context, c Control, query string) (Match, error) {
	m, err := r.selectItem(ctx, c, query)
	if r.observe != nil {
		r.observe(c.String(), err == nil)
	}
	return m, err
}

func (r *Resolver) selectItem(ctx context.Context, c Control, query string) (Match, error) {
	x := &run{c: c, query: query, state: Closed,
		log: r.log.With(zap.String("control", c.String()), zap.String("query", query))}

	x.to(Opening)
	ok, err := r.probe.HasControl(ctx, c)
	if err != nil || !ok {
		return Match{}, x.fail(ReasonButtonNotFound, err)
	}
	for _, t := range r.cfg.Triggers {
		if err := r.probe.Trigger(ctx, c, t); err != nil {
			x.log.Debug("trigger failed", zap.String("trigger", string(t)), zap.Error(err))
		}
		if err := r.cfg.Clock.Sleep(ctx, r.cfg.OpenWait); err != nil {
			return Match{}, x.fail(ReasonPanelNotFound, err)
		}
		if open, _ := r.probe.PanelOpen(ctx); open {
			break
		}
	}

	x.to(WaitingForPanel)
	_, err = resilience.Poll(ctx, r.cfg.Clock, r.cfg.Panel, func(ctx context.Context) (bool, error) {
		open, err := r.probe.PanelOpen(ctx)
		return err == nil && open, nil
	})
	if err != nil {
		return Match{}, x.fail(ReasonPanelNotFound, ctx.Err())
	}

	x.to(Searching)
	found := false
	for _, scope := range []Scope{ScopeListRegion, ScopePanel, ScopeDocument} {
		if ok, err := r.probe.FocusSearch(ctx, scope); err == nil && ok {
			x.log.Debug("search field found", zap.String("scope", string(scope)))
			found = true
			break
		}
	}
	if !found {
		return Match{}, x.fail(ReasonSearchFieldNotFound, nil)
	}
	for _, ch := range query {
		if err := r.probe.TypeKey(ctx, string(ch)); err != nil {
			return Match{}, x.fail(ReasonSearchFieldNotFound, err)
		}
		if err := r.cfg.Clock.Sleep(ctx, r.cfg.Keystroke); err != nil {
			return Match{}, x.fail(ReasonSearchFieldNotFound, err)
		}
	}

	x.to(WaitingForFilteredResults)
	var match Match
	var last []string
	_, err = resilience.Poll(ctx, r.cfg.Clock, r.cfg.Results, func(ctx context.Context) (bool, error) {
		items, err := r.probe.Candidates(ctx)
		if err != nil || len(items) == 0 {
			return false, nil
		}
		last = items
		m, ok := Find(query, items)
		if ok {
			match = m
		}
		return ok, nil
	})
	if err != nil {
		x.log.Debug("candidates at give-up", zap.Strings("items", head(last, 10)))
		return Match{}, x.fail(ReasonNoMatch, ctx.Err())
	}

	x.to(Selecting)
	if err := r.probe.Select(ctx, match.Index); err != nil {
		return Match{}, x.fail(ReasonSelectFailed, err)
	}
	if err := r.cfg.Clock.Sleep(ctx, r.cfg.Settle); err != nil {
		return Match{}, x.fail(ReasonSelectFailed, err)
	}

	x.to(Confirmed)
	x.log.Info("dropdown selected", zap.String("item", match.Text), zap.Stringer("rule", match.Rule))
	return match, nil
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
