package form

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/dropdown"
	"github.com/xconmik/buildata-automation/internal/resilience"
)

// FieldSetter writes values into the destination form.
type FieldSetter interface {
	// SetField writes value into field. A missing element is ErrFieldNotFound
	// and a select without a matching option is ErrNoOption.
	SetField(ctx context.Context, field FieldID, value string) error
	// Click presses the button labelled action. A missing button is
	// ErrButtonNotFound.
	Click(ctx context.Context, action Action) error
	// EmailCheck returns the text of the email verification result shown
	// after ActionCheckEmail, or "" when nothing is shown.
	EmailCheck(ctx context.Context) (string, error)
}

// Selector picks an item from a searchable dropdown.
type Selector interface {
	Select(ctx context.Context, c dropdown.Control, query string) (dropdown.Match, error)
}

// CampaignControl is the searchable campaign picker at the top of the form.
var CampaignControl = dropdown.Control{
	Label:    "Campaign",
	Selector: `button.dropdown-toggle[type="button"], button.btn.dropdown-toggle`,
}

// Options tune a Filler.
type Options struct {
	// AutoButtons enables the check and load buttons.
	AutoButtons bool
	// Submit presses the submit button once every field is written.
	Submit bool

	ButtonWait     time.Duration
	FieldPause     time.Duration
	CampaignSettle time.Duration
	SpecLoad       time.Duration
	SubmitWait     time.Duration
	Clock          resilience.Clock
}

// DefaultOptions returns the pacing used against the live form.
func DefaultOptions() Options {
	return Options{
		AutoButtons:    true,
		ButtonWait:     2 * time.Second,
		FieldPause:     500 * time.Millisecond,
		CampaignSettle: 2 * time.Second,
		SpecLoad:       4 * time.Second,
		SubmitWait:     1500 * time.Millisecond,
		Clock:          resilience.SystemClock{},
	}
}

// Report summarizes one fill.
type Report struct {
	// EmailCheck is the verification text read after Check Email.
	EmailCheck string
	Campaign   *dropdown.Match
	Submitted  bool
	Written    []FieldID
	// Skipped lists fields that were blank, absent from the page or had no
	// matching option.
	Skipped []FieldID
}

// Filler writes a Payload into the form in a fixed order.
type Filler struct {
	set  FieldSetter
	sel  Selector
	opts Options
	log  *zap.Logger
}

// NewFiller returns a Filler. sel may be nil when leads never carry a
// campaign.
func NewFiller(set FieldSetter, sel Selector, opts Options) *Filler {
	if opts.Clock == nil {
		opts.Clock = resilience.SystemClock{}
	}
	return &Filler{
		set:  set,
		sel:  sel,
		opts: opts,
		log:  zap.L().With(zap.String("component", "form.filler")),
	}
}

// checked pairs a field with the button pressed after writing it.
var checked = map[FieldID]Action{
	FieldEmail:       ActionCheckEmail,
	FieldWebsite:     ActionCheckSuppression,
	FieldContactLink: ActionCheckDuplicates,
}

// Fill writes p. A non-empty campaign is selected first and is mandatory:
// its failure is returned unchanged so the caller can recognise a
// *dropdown.SelectionError. Missing fields and options are skipped; any
// other setter error aborts the fill.
func (f *Filler) Fill(ctx context.Context, campaign string, p Payload) (Report, error) {
	var rep Report

	if campaign != "" {
		if f.sel == nil {
			return rep, eris.New("form: campaign requested without a selector")
		}
		m, err := f.sel.Select(ctx, CampaignControl, campaign)
		if err != nil {
			return rep, err
		}
		rep.Campaign = &m
		if err := f.opts.Clock.Sleep(ctx, f.opts.CampaignSettle); err != nil {
			return rep, err
		}
		if f.opts.AutoButtons {
			if err := f.clickWait(ctx, ActionLoadSpecifications, f.opts.SpecLoad); err != nil {
				return rep, err
			}
		}
	}

	for _, id := range Order {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		v := p[id]
		if v == "" {
			rep.Skipped = append(rep.Skipped, id)
		} else if err := f.set.SetField(ctx, id, v); err != nil {
			if !eris.Is(err, ErrFieldNotFound) && !eris.Is(err, ErrNoOption) {
				return rep, eris.Wrapf(err, "form: set %s", id)
			}
			f.log.Warn("field skipped", zap.String("field", string(id)), zap.Error(err))
			rep.Skipped = append(rep.Skipped, id)
		} else {
			rep.Written = append(rep.Written, id)
		}

		action, ok := checked[id]
		if !ok {
			continue
		}
		if err := f.opts.Clock.Sleep(ctx, f.opts.FieldPause); err != nil {
			return rep, err
		}
		if !f.opts.AutoButtons {
			continue
		}
		if err := f.clickWait(ctx, action, f.opts.ButtonWait); err != nil {
			return rep, err
		}
		if action == ActionCheckEmail {
			text, err := f.set.EmailCheck(ctx)
			if err != nil {
				return rep, eris.Wrap(err, "form: read email check")
			}
			rep.EmailCheck = text
		}
		if err := f.click(ctx, ActionModalOK); err != nil {
			return rep, err
		}
	}

	if f.opts.Submit {
		if err := f.set.Click(ctx, ActionSubmit); err != nil {
			return rep, eris.Wrap(err, "form: submit")
		}
		rep.Submitted = true
		if err := f.opts.Clock.Sleep(ctx, f.opts.SubmitWait); err != nil {
			return rep, err
		}
	}

	f.log.Debug("form filled",
		zap.Int("written", len(rep.Written)),
		zap.Int("skipped", len(rep.Skipped)),
		zap.String("email_check", rep.EmailCheck),
		zap.Bool("submitted", rep.Submitted),
	)
	return rep, nil
}

func (f *Filler) clickWait(ctx context.Context, action Action, wait time.Duration) error {
	if err := f.click(ctx, action); err != nil {
		return err
	}
	return f.opts.Clock.Sleep(ctx, wait)
}

// click presses action. Missing buttons are logged and ignored.
func (f *Filler) click(ctx context.Context, action Action) error {
	err := f.set.Click(ctx, action)
	if eris.Is(err, ErrButtonNotFound) {
		f.log.Debug("button not found", zap.String("button", string(action)))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "form: click %q", action)
	}
	return nil
}
