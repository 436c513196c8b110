package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/dropdown"
	"github.com/xconmik/buildata-automation/internal/form"
)

var (
	_ form.FieldSetter = (*FormPage)(nil)
	_ dropdown.Probe   = (*FormPage)(nil)
)

// SubmitSelector locates the form's submit button.
const SubmitSelector = `button.btn-success[type="submit"]`

// FormPage is the destination form in its own tab. It writes fields for the
// Filler and answers the dropdown Resolver's probes.
type FormPage struct {
	b     *Browser
	url   string
	specs map[form.FieldID]form.Spec
	// fieldTimeout bounds a single field write.
	fieldTimeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// NewFormPage returns a FormPage for the form at url. Nothing is opened
// until Load.
func NewFormPage(b *Browser, url string, specs map[form.FieldID]form.Spec) *FormPage {
	return &FormPage{
		b:            b,
		url:          url,
		specs:        specs,
		fieldTimeout: 15 * time.Second,
		log:          zap.L().With(zap.String("component", "browser.form")),
	}
}

// Load navigates to a blank form, opening the tab on first use, and closes
// any modal left over from the previous lead.
func (f *FormPage) Load(ctx context.Context) error {
	tab, err := f.tab()
	if err != nil {
		return err
	}
	err = run(ctx, tab,
		chromedp.Navigate(f.url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrapf(err, "browser: load form %s", f.url)
	}
	var dismissed bool
	if err := run(ctx, tab, chromedp.Evaluate(jsDismissStaleModal, &dismissed)); err != nil {
		return eris.Wrap(err, "browser: dismiss modal")
	}
	if dismissed {
		f.log.Debug("stale modal dismissed")
	}
	return nil
}

// Close closes the form tab.
func (f *FormPage) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.ctx, f.cancel = nil, nil
	}
}

func (f *FormPage) tab() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctx != nil {
		return f.ctx, nil
	}
	ctx, cancel, err := f.b.newTab()
	if err != nil {
		return nil, err
	}
	f.ctx, f.cancel = ctx, cancel
	return ctx, nil
}

func (f *FormPage) eval(ctx context.Context, expr string, out any) error {
	tab, err := f.tab()
	if err != nil {
		return err
	}
	return run(ctx, tab, chromedp.Evaluate(expr, out))
}

// SetField writes value into a text input or picks the matching option of a
// native select.
func (f *FormPage) SetField(ctx context.Context, id form.FieldID, value string) error {
	spec, ok := f.specs[id]
	if !ok {
		return eris.Wrapf(form.ErrFieldNotFound, "no selector for %s", id)
	}
	ctx, cancel := context.WithTimeout(ctx, f.fieldTimeout)
	defer cancel()

	if spec.Kind == form.KindSelect {
		return f.setSelect(ctx, id, spec.Selector, value)
	}
	return f.setText(ctx, id, spec.Selector, value)
}

func (f *FormPage) setText(ctx context.Context, id form.FieldID, sel, value string) error {
	var found bool
	if err := f.eval(ctx, script(jsClearText, sel), &found); err != nil {
		return f.fieldErr(err, id)
	}
	if !found {
		return eris.Wrapf(form.ErrFieldNotFound, "%s (%s)", id, sel)
	}
	tab, err := f.tab()
	if err != nil {
		return err
	}
	if err := run(ctx, tab, chromedp.SendKeys(sel, value, chromedp.ByQuery)); err != nil {
		return f.fieldErr(err, id)
	}
	var ok bool
	return f.fieldErr(f.eval(ctx, script(jsCommitText, sel), &ok), id)
}

type selectState struct {
	Found   bool              `json:"found"`
	Options []dropdown.Option `json:"options"`
}

func (f *FormPage) setSelect(ctx context.Context, id form.FieldID, sel, value string) error {
	var st selectState
	if err := f.eval(ctx, script(jsSelectOptions, sel), &st); err != nil {
		return f.fieldErr(err, id)
	}
	if !st.Found {
		return eris.Wrapf(form.ErrFieldNotFound, "%s (%s)", id, sel)
	}
	opt, ok := dropdown.FindOption(value, st.Options)
	if !ok {
		return eris.Wrapf(form.ErrNoOption, "%s = %q", id, value)
	}
	var set bool
	if err := f.eval(ctx, script(jsSetSelect, sel, opt.Value), &set); err != nil {
		return f.fieldErr(err, id)
	}
	f.log.Debug("select set",
		zap.String("field", string(id)),
		zap.String("value", value),
		zap.String("option", opt.Text),
	)
	return nil
}

// fieldErr maps a field write timeout to ErrFieldNotFound so the fill goes
// on; anything else is a broken page.
func (f *FormPage) fieldErr(err error, id form.FieldID) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return eris.Wrapf(form.ErrFieldNotFound, "%s: timed out", id)
	}
	return eris.Wrapf(err, "browser: set %s", id)
}

// Click presses a button by its visible text. ActionModalOK only matches
// inside a modal and ActionSubmit uses SubmitSelector.
func (f *FormPage) Click(ctx context.Context, action form.Action) error {
	var (
		clicked bool
		expr    string
	)
	switch action {
	case form.ActionSubmit:
		expr = script(jsClickSelector, SubmitSelector)
	case form.ActionModalOK:
		expr = script(jsClickButton, string(action), true)
	default:
		expr = script(jsClickButton, string(action), false)
	}
	if err := f.eval(ctx, expr, &clicked); err != nil {
		return eris.Wrapf(err, "browser: click %q", action)
	}
	if !clicked {
		return eris.Wrapf(form.ErrButtonNotFound, "%q", action)
	}
	return nil
}

// EmailCheck returns the text of the visible result modal, or of an inline
// validation hint when no modal is shown.
func (f *FormPage) EmailCheck(ctx context.Context) (string, error) {
	var text string
	if err := f.eval(ctx, jsEmailCheck, &text); err != nil {
		return "", eris.Wrap(err, "browser: read email check")
	}
	return text, nil
}

func (f *FormPage) HasControl(ctx context.Context, c dropdown.Control) (bool, error) {
	var ok bool
	err := f.eval(ctx, script(jsHasControl, c.Label, c.Selector), &ok)
	return ok, err
}

func (f *FormPage) Trigger(ctx context.Context, c dropdown.Control, t dropdown.Trigger) error {
	var ok bool
	if t == dropdown.TriggerClick {
		return f.eval(ctx, script(jsClickControl, c.Label, c.Selector), &ok)
	}
	if err := f.eval(ctx, script(jsFocusControl, c.Label, c.Selector), &ok); err != nil || !ok {
		return err
	}
	key := kb.Enter
	if t == dropdown.TriggerArrowDown {
		key = kb.ArrowDown
	}
	return f.key(ctx, key)
}

func (f *FormPage) PanelOpen(ctx context.Context) (bool, error) {
	var ok bool
	err := f.eval(ctx, script(jsPanelOpen), &ok)
	return ok, err
}

func (f *FormPage) FocusSearch(ctx context.Context, scope dropdown.Scope) (bool, error) {
	var ok bool
	err := f.eval(ctx, script(jsFocusSearch, string(scope)), &ok)
	return ok, err
}

func (f *FormPage) TypeKey(ctx context.Context, key string) error {
	return f.key(ctx, key)
}

func (f *FormPage) Candidates(ctx context.Context) ([]string, error) {
	var out []string
	err := f.eval(ctx, script(jsCandidates), &out)
	return out, err
}

func (f *FormPage) Select(ctx context.Context, index int) error {
	var ok bool
	if err := f.eval(ctx, script(jsSelectItem, index), &ok); err != nil {
		return err
	}
	if !ok {
		return eris.Errorf("browser: dropdown item %d vanished", index)
	}
	return nil
}

// key sends one key press to the focused element.
func (f *FormPage) key(ctx context.Context, key string) error {
	tab, err := f.tab()
	if err != nil {
		return err
	}
	return run(ctx, tab, chromedp.KeyEvent(key))
}
