package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/browser"
	"github.com/xconmik/buildata-automation/internal/company"
	"github.com/xconmik/buildata-automation/internal/config"
	"github.com/xconmik/buildata-automation/internal/dropdown"
	"github.com/xconmik/buildata-automation/internal/extract"
	"github.com/xconmik/buildata-automation/internal/fetcher"
	"github.com/xconmik/buildata-automation/internal/form"
	"github.com/xconmik/buildata-automation/internal/metrics"
	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/pipeline"
	"github.com/xconmik/buildata-automation/internal/resilience"
	"github.com/xconmik/buildata-automation/internal/scrape"
	"github.com/xconmik/buildata-automation/pkg/jina"
)

// runEnv holds the browser, the wired controller and everything else the
// run and serve commands share.
type runEnv struct {
	Browser    *browser.Browser
	Form       *browser.FormPage
	Controller *pipeline.Controller
	Metrics    *metrics.Metrics
	Aliases    model.AliasTable
	Downloader fetcher.Downloader
}

// Close releases the form tab and the browser.
func (e *runEnv) Close() {
	if e.Form != nil {
		e.Form.Close()
	}
	if e.Browser != nil {
		e.Browser.Close()
	}
}

// initRun validates the config for mode, starts the browser and builds the
// pipeline controller. campaign overrides form.campaign when set. Callers
// should defer env.Close().
func initRun(ctx context.Context, mode, campaign string) (*runEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	dl := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: cfg.Browser.UserAgent})

	aliases, err := loadAliases(cfg.Leads.AliasFile)
	if err != nil {
		return nil, err
	}

	dir, err := company.LoadDirectory(ctx, cfg.Reference.Path, dl)
	if err != nil {
		return nil, eris.Wrap(err, "load reference directory")
	}
	b, err := browser.New(ctx, browser.Options{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
		ExecPath:  cfg.Browser.ExecPath,
		RemoteURL: cfg.Browser.RemoteURL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "start browser")
	}

	m := metrics.New()
	probeTimeout := secs(cfg.Scrape.ProbeTimeoutSecs)

	var nav scrape.Navigator
	if cfg.Scrape.Navigator == "jina" {
		client := jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
			jina.WithReturnFormat(cfg.Jina.Format),
			jina.WithRateLimit(cfg.Scrape.SearchRatePerSec),
			jina.WithTimeout(probeTimeout),
		)
		nav = jina.NewNavigator(client, probeTimeout)
		zap.L().Info("scraping through jina reader")
	} else {
		nav = scrape.Throttle(browser.NewNavigator(b, probeTimeout), cfg.Scrape.SearchRatePerSec)
	}

	ext := extract.New()
	if cfg.Scrape.ProfileHost != "" {
		ext.Host = cfg.Scrape.ProfileHost
	}
	coord := scrape.NewCoordinator(
		scrape.WithTTL(cfg.Scrape.CacheTTL()),
		scrape.WithObserver(m),
	)
	scraper := scrape.NewScraper(nav, ext, coord, scrapeOptions(cfg.Scrape))

	page := browser.NewFormPage(b, cfg.Browser.FormURL, form.WithSelectors(form.DefaultSpecs(), cfg.Form.Selectors))
	selector := dropdown.NewResolver(page, dropdownConfig(cfg.Dropdown))
	selector.OnResult(m.ObserveSelection)
	filler := form.NewFiller(page, selector, formOptions(cfg.Form))

	popts := pipelineOptions(cfg.Pipeline)
	popts.Campaign = firstNonEmpty(campaign, cfg.Form.Campaign)
	popts.Form = page
	popts.Observer = m
	ctrl := pipeline.New(company.NewResolver(dir), scraper, filler, popts)

	return &runEnv{
		Browser:    b,
		Form:       page,
		Controller: ctrl,
		Metrics:    m,
		Aliases:    aliases,
		Downloader: dl,
	}, nil
}

// loadAliases returns the built-in alias table extended by the YAML file at
// path, if any.
func loadAliases(path string) (model.AliasTable, error) {
	aliases := model.DefaultAliases()
	if path == "" {
		return aliases, nil
	}
	extra, err := model.LoadAliasFile(path)
	if err != nil {
		return nil, err
	}
	return aliases.Extend(extra), nil
}

// loadLeads reads a CSV or XLSX lead sheet and maps each row onto canonical
// fields. sheet selects an XLSX worksheet by name.
func loadLeads(ctx context.Context, src, sheet string, aliases model.AliasTable, dl fetcher.Downloader) ([]model.Lead, error) {
	var (
		table *fetcher.Table
		err   error
	)
	if sheet != "" && strings.EqualFold(filepath.Ext(src), ".xlsx") && !strings.Contains(src, "://") {
		table, err = fetcher.ReadXLSX(src, fetcher.XLSXOptions{SheetName: sheet})
	} else {
		table, err = fetcher.ReadTable(ctx, src, dl)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read leads %s", src)
	}

	leads := make([]model.Lead, 0, len(table.Rows))
	for i, row := range table.Rows {
		leads = append(leads, model.NewLead(i, row, aliases))
	}
	return leads, nil
}

func scrapeOptions(c config.ScrapeConfig) scrape.Options {
	opts := scrape.DefaultOptions()
	opts.SearchBaseURL = c.SearchBaseURL
	opts.ProfileQuery = c.ProfileQuery
	opts.DirectoryQuery = c.DirectoryQuery
	opts.EmailQuery = c.EmailQuery
	opts.SearchSettle = ms(c.SearchSettleMs)
	opts.ProfileSettle = ms(c.PageSettleMs)
	if c.SearchRetries >= 0 {
		opts.Retry.MaxAttempts = c.SearchRetries + 1
	}
	if c.ChallengeWaitSecs > 0 && c.ChallengePollSecs > 0 {
		opts.ChallengeWait = resilience.PollPolicy{
			MaxAttempts: c.ChallengeWaitSecs/c.ChallengePollSecs + 1,
			Interval:    secs(c.ChallengePollSecs),
		}
	}
	if c.BreakerThreshold > 0 {
		opts.Breaker.FailureThreshold = c.BreakerThreshold
	}
	if c.BreakerResetSecs > 0 {
		opts.Breaker.ResetTimeout = secs(c.BreakerResetSecs)
	}
	return opts
}

func dropdownConfig(c config.DropdownConfig) dropdown.Config {
	dc := dropdown.DefaultConfig()
	dc.OpenWait = ms(c.OpenWaitMs)
	dc.Panel = resilience.PollPolicy{MaxAttempts: c.PanelAttempts, Interval: ms(c.PanelIntervalMs)}
	dc.Results = resilience.PollPolicy{MaxAttempts: c.ResultAttempts, Interval: ms(c.ResultIntervalMs)}
	dc.Keystroke = ms(c.KeystrokeMs)
	dc.Settle = ms(c.SettleMs)
	return dc
}

func formOptions(c config.FormConfig) form.Options {
	o := form.DefaultOptions()
	o.AutoButtons = c.AutoButtons
	o.Submit = c.Submit
	o.ButtonWait = ms(c.ButtonWaitMs)
	o.FieldPause = ms(c.FieldPauseMs)
	o.SpecLoad = ms(c.SpecLoadMs)
	o.SubmitWait = ms(c.SubmitWaitMs)
	return o
}

func pipelineOptions(c config.PipelineConfig) pipeline.Options {
	o := pipeline.DefaultOptions()
	o.InterLeadDelay = ms(c.InterLeadDelayMs)
	o.ScrapeDelay = ms(c.ScrapeDelayMs)
	if c.InvalidStreakLimit > 0 {
		o.InvalidStreakLimit = c.InvalidStreakLimit
	}
	return o
}

func ms(n int) time.Duration   { return time.Duration(n) * time.Millisecond }
func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
