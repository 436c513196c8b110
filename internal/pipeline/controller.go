// Package pipeline runs leads one at a time through company resolution,
// scraping, normalization, form filling and outcome classification, and
// turns email-check outcomes into per-company block decisions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/form"
	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/normalize"
	"github.com/xconmik/buildata-automation/internal/resilience"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = eris.New("pipeline: run already in progress")

// errStopped unwinds a lead when the stop flag is seen between steps.
var errStopped = eris.New("pipeline: stopped")

// State is the controller's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Step is the per-lead step in progress.
type Step string

const (
	StepNone        Step = ""
	StepResolving   Step = "resolving"
	StepScraping    Step = "scraping"
	StepNormalizing Step = "normalizing"
	StepFilling     Step = "filling"
	StepClassifying Step = "classifying"
	StepWaiting     Step = "waiting"
)

// Status is a snapshot of the controller for display.
type Status struct {
	RunID     string `json:"run_id,omitempty"`
	State     State  `json:"state"`
	Step      Step   `json:"step,omitempty"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// FatalError is an unrecoverable failure while scraping or filling a lead.
// It stops the whole run.
type FatalError struct {
	Lead int
	Step Step
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline: lead %d failed while %s: %v", e.Lead, e.Step, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Resolver reconciles a lead's company name with the reference directory.
type Resolver interface {
	Resolve(baseName, domain, explicitReference string) string
}

// Scraper fetches facts for a lead. Implementations absorb scrape failures
// and only return errors the run cannot continue past.
type Scraper interface {
	CompanyFacts(ctx context.Context, domain string) (model.FactRecord, error)
	DirectoryAddress(ctx context.Context, domain string) (model.FactRecord, error)
	Email(ctx context.Context, domain, first, last string) (model.FactRecord, error)
}

// Filler writes one lead into the destination form.
type Filler interface {
	Fill(ctx context.Context, campaign string, p form.Payload) (form.Report, error)
}

// FormLoader brings up a blank form before each fill.
type FormLoader interface {
	Load(ctx context.Context) error
}

// Observer is told about every lead that reaches a log row.
type Observer interface {
	LeadProcessed(status model.LogStatus, elapsed time.Duration)
}

// Options configures a Controller.
type Options struct {
	// InterLeadDelay is waited after every lead that reached the form.
	InterLeadDelay time.Duration
	// ScrapeDelay is waited between the scrapes of one lead.
	ScrapeDelay time.Duration
	// InvalidStreakLimit is the number of consecutive invalid emails that
	// blocks a company.
	InvalidStreakLimit int
	// Campaign is used for leads whose row names none. Empty disables
	// campaign selection for those leads.
	Campaign string

	Form     FormLoader
	Observer Observer
	Clock    resilience.Clock
}

// DefaultOptions returns the production pacing.
func DefaultOptions() Options {
	return Options{
		InterLeadDelay:     3 * time.Second,
		InvalidStreakLimit: 5,
		Clock:              resilience.SystemClock{},
	}
}

// Controller drives runs over a lead list. At most one run is active.
type Controller struct {
	resolver Resolver
	scraper  Scraper
	filler   Filler
	opts     Options

	blocks *BlockTable
	audit  *AuditLog

	running atomic.Bool
	stop    atomic.Bool

	mu     sync.Mutex
	status Status
	log    *zap.Logger
}

// New returns an idle Controller.
func New(res Resolver, sc Scraper, fill Filler, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = resilience.SystemClock{}
	}
	return &Controller{
		resolver: res,
		scraper:  sc,
		filler:   fill,
		opts:     opts,
		blocks:   NewBlockTable(opts.InvalidStreakLimit),
		audit:    &AuditLog{},
		status:   Status{State: StateIdle},
		log:      zap.L().With(zap.String("component", "pipeline")),
	}
}

// Blocks returns the company block table.
func (c *Controller) Blocks() *BlockTable { return c.blocks }

// Log returns the audit log.
func (c *Controller) Log() *AuditLog { return c.audit }

// Status returns a snapshot of the current run.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Running reports whether a run is active.
func (c *Controller) Running() bool { return c.running.Load() }

// Stop asks the active run to stop at the next step boundary. In-flight
// page work is not interrupted.
func (c *Controller) Stop() {
	if c.running.Load() {
		c.stop.Store(true)
		c.log.Info("pipeline: stop requested")
	}
}

// Start processes leads in order and blocks until the run ends. It returns
// nil when every lead was processed or the run was stopped, ctx.Err() when
// ctx was cancelled, and a *FatalError when a lead failed unrecoverably.
func (c *Controller) Start(ctx context.Context, leads []model.Lead) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)
	c.stop.Store(false)

	runID := uuid.NewString()
	log := c.log.With(zap.String("run_id", runID))
	c.update(func(s *Status) {
		*s = Status{RunID: runID, State: StateRunning, Total: len(leads), Message: "Automation started"}
	})
	log.Info("pipeline: run started", zap.Int("leads", len(leads)))

	for i := range leads {
		if c.stopped(ctx) {
			return c.halt(ctx, log)
		}
		lead := &leads[i]
		c.update(func(s *Status) { s.Index = i })

		filled, err := c.process(ctx, lead)
		switch {
		case err == nil:
		case errors.Is(err, errStopped), ctx.Err() != nil:
			return c.halt(ctx, log)
		default:
			c.update(func(s *Status) {
				s.State, s.Step, s.Message = StateStopped, StepNone, err.Error()
			})
			log.Error("pipeline: run aborted", zap.Int("lead", lead.Index), zap.Error(err))
			return err
		}

		if filled && i < len(leads)-1 {
			c.update(func(s *Status) { s.Step = StepWaiting })
			if err := c.pause(ctx, c.opts.InterLeadDelay); err != nil {
				return c.halt(ctx, log)
			}
		}
	}

	c.update(func(s *Status) {
		s.State, s.Step, s.Message = StateIdle, StepNone, "All leads processed"
	})
	log.Info("pipeline: run complete", zap.Int("rows", c.audit.Len()))
	return nil
}

func (c *Controller) halt(ctx context.Context, log *zap.Logger) error {
	c.update(func(s *Status) {
		s.State, s.Step, s.Message = StateStopped, StepNone, "Automation stopped"
	})
	log.Info("pipeline: run stopped")
	return ctx.Err()
}

// process runs one lead. filled reports whether the lead reached the form.
func (c *Controller) process(ctx context.Context, lead *model.Lead) (filled bool, err error) {
	start := c.opts.Clock.Now()
	log := c.log.With(zap.Int("lead", lead.Index))

	c.step(StepResolving, "Resolving company")
	domain := lead.Get(model.FieldDomain)
	lead.ResolvedCompany = c.resolver.Resolve(lead.Get(model.FieldCompany), domain, lead.Get(model.FieldReferenceCompany))
	company := lead.CompanyName()

	if c.blocks.Blocked(company) {
		c.record(lead, model.LogSkippedCompany, "company blocked by invalid email policy", start)
		log.Info("pipeline: company blocked, lead skipped", zap.String("company", company))
		return false, nil
	}

	c.step(StepScraping, "Scraping "+display(company, domain))
	if err := c.scrape(ctx, lead); err != nil {
		return false, c.fatal(lead, StepScraping, err, start)
	}
	if c.stopped(ctx) {
		return false, errStopped
	}

	c.step(StepNormalizing, "Normalizing facts")
	payload := form.BuildPayload(*lead)
	lead.Campaign = firstNonEmpty(lead.Get(model.FieldCampaign), c.opts.Campaign)

	c.step(StepFilling, "Filling form for "+display(company, domain))
	if c.opts.Form != nil {
		if err := c.opts.Form.Load(ctx); err != nil {
			return false, c.fatal(lead, StepFilling, err, start)
		}
	}
	rep, err := c.filler.Fill(ctx, lead.Campaign, payload)
	if err != nil {
		return false, c.fatal(lead, StepFilling, err, start)
	}
	if c.stopped(ctx) {
		return true, errStopped
	}

	c.step(StepClassifying, "Classifying outcome")
	c.classify(lead, rep, start)
	log.Debug("pipeline: lead complete",
		zap.String("company", company),
		zap.Int("written", len(rep.Written)),
		zap.Duration("elapsed", c.opts.Clock.Now().Sub(start)),
	)
	return true, nil
}

// scrape fills lead.Facts and lead.Email. The directory address overrides
// the headquarters components it carries.
func (c *Controller) scrape(ctx context.Context, lead *model.Lead) error {
	domain := lead.Get(model.FieldDomain)

	facts, err := c.scraper.CompanyFacts(ctx, domain)
	if err != nil {
		return eris.Wrap(err, "company facts")
	}
	if err := c.pause(ctx, c.opts.ScrapeDelay); err != nil {
		return err
	}

	dir, err := c.scraper.DirectoryAddress(ctx, domain)
	if err != nil {
		return eris.Wrap(err, "directory address")
	}
	facts = overrideAddress(facts, dir)
	if err := c.pause(ctx, c.opts.ScrapeDelay); err != nil {
		return err
	}

	first, last := personName(*lead)
	email, err := c.scraper.Email(ctx, domain, first, last)
	if err != nil {
		return eris.Wrap(err, "email")
	}

	lead.Facts = facts
	lead.Email = email.Email
	return nil
}

func (c *Controller) classify(lead *model.Lead, rep form.Report, start time.Time) {
	company := lead.CompanyName()
	outcome := ClassifyEmailCheck(rep.EmailCheck)
	limit := c.blocks.limit

	switch outcome {
	case OutcomeHardInvalid:
		c.blocks.Block(company)
		c.record(lead, model.LogHardInvalid, fmt.Sprintf("hard invalid email %s; company blocked", lead.Email), start)
	case OutcomeInvalid:
		st := c.blocks.RecordInvalid(company)
		if st.Blocked {
			c.record(lead, model.LogCompanyBlocked,
				fmt.Sprintf("invalid email %s; streak %d reached %d, company blocked", lead.Email, st.InvalidStreak, limit), start)
		} else {
			c.record(lead, model.LogInvalidEmail,
				fmt.Sprintf("invalid email %s; streak %d/%d", lead.Email, st.InvalidStreak, limit), start)
		}
	case OutcomeRetry:
		c.record(lead, model.LogRetryNextContact, "email check asked for retry: "+rep.EmailCheck, start)
	case OutcomeValid:
		c.blocks.ClearStreak(company)
		c.record(lead, model.LogSuccess, "email valid", start)
	default:
		c.record(lead, model.LogSuccess, successMessage(rep), start)
	}
}

func successMessage(rep form.Report) string {
	msg := fmt.Sprintf("filled %d fields", len(rep.Written))
	if rep.Submitted {
		msg += ", submitted"
	}
	return msg
}

func (c *Controller) fatal(lead *model.Lead, step Step, err error, start time.Time) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	fe := &FatalError{Lead: lead.Index, Step: step, Err: err}
	c.record(lead, model.LogError, err.Error(), start)
	return fe
}

func (c *Controller) record(lead *model.Lead, status model.LogStatus, msg string, start time.Time) {
	now := c.opts.Clock.Now()
	first, last := personName(*lead)
	c.audit.Append(model.LogRow{
		Timestamp:  now,
		Status:     status,
		Company:    lead.CompanyName(),
		Domain:     lead.Get(model.FieldDomain),
		PersonName: strings.TrimSpace(first + " " + last),
		Message:    msg,
	})
	c.update(func(s *Status) { s.Processed++ })
	if c.opts.Observer != nil {
		c.opts.Observer.LeadProcessed(status, now.Sub(start))
	}
}

func (c *Controller) stopped(ctx context.Context) bool {
	return c.stop.Load() || ctx.Err() != nil
}

func (c *Controller) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.opts.Clock.Sleep(ctx, d)
}

func (c *Controller) step(s Step, msg string) {
	c.update(func(st *Status) { st.Step, st.Message = s, msg })
}

func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

func overrideAddress(facts, dir model.FactRecord) model.FactRecord {
	if dir.Street != "" {
		facts.Street = dir.Street
	}
	if dir.City != "" {
		facts.City = dir.City
	}
	if dir.State != "" {
		facts.State = dir.State
	}
	if dir.ZipCode != "" {
		facts.ZipCode = dir.ZipCode
	}
	return facts
}

func personName(l model.Lead) (first, last string) {
	first, last = l.Get(model.FieldFirstName), l.Get(model.FieldLastName)
	if first == "" && last == "" {
		first, last = normalize.SplitName(l.Get(model.FieldPersonName))
	}
	return first, last
}

func display(company, domain string) string {
	if company != "" {
		return company
	}
	return domain
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
