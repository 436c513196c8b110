package scrape

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/normalize"
	"github.com/xconmik/buildata-automation/internal/resilience"
)

// Options configures the scrape workflows.
type Options struct {
	// SearchBaseURL is the search endpoint; the query is appended as q.
	SearchBaseURL string
	// ProfileQuery, DirectoryQuery and EmailQuery are appended to the
	// domain to form each search.
	ProfileQuery   string
	DirectoryQuery string
	EmailQuery     string

	// SearchSettle and ProfileSettle are fixed waits after navigating,
	// before the page is probed.
	SearchSettle  time.Duration
	ProfileSettle time.Duration

	// ChallengeWait polls a blocked page until the challenge is cleared,
	// which only happens when someone solves it in a visible browser. A
	// zero policy gives up on the first block.
	ChallengeWait resilience.PollPolicy

	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
	Clock   resilience.Clock
}

// DefaultOptions mirrors the waits the destination workflow was tuned with.
func DefaultOptions() Options {
	return Options{
		SearchBaseURL:  "https://www.google.com/search",
		ProfileQuery:   "zoominfo",
		DirectoryQuery: "zoominfo employee directory",
		EmailQuery:     "rocketreach email",
		SearchSettle:   4 * time.Second,
		ProfileSettle:  6 * time.Second,
		Retry:          resilience.DefaultRetryConfig(),
		Breaker:        resilience.DefaultCircuitBreakerConfig(),
	}
}

// Scraper runs the search-then-profile workflows for one lead through a
// shared Coordinator.
type Scraper struct {
	nav     Navigator
	ext     Extractor
	coord   *Coordinator
	opts    Options
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
}

// NewScraper wires a Scraper. Zero-valued options fall back to
// DefaultOptions field by field.
func NewScraper(nav Navigator, ext Extractor, coord *Coordinator, opts Options) *Scraper {
	def := DefaultOptions()
	if opts.SearchBaseURL == "" {
		opts.SearchBaseURL = def.SearchBaseURL
	}
	if opts.ProfileQuery == "" {
		opts.ProfileQuery = def.ProfileQuery
	}
	if opts.DirectoryQuery == "" {
		opts.DirectoryQuery = def.DirectoryQuery
	}
	if opts.EmailQuery == "" {
		opts.EmailQuery = def.EmailQuery
	}
	if opts.Clock == nil {
		opts.Clock = resilience.SystemClock{}
	}
	opts.Retry.Clock = opts.Clock
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("scrape", "open")
	}

	log := zap.L().With(zap.String("component", "scrape"))
	bcfg := opts.Breaker
	bcfg.Clock = opts.Clock
	bcfg.ShouldTrip = func(err error) bool { return errors.Is(err, ErrBlocked) }
	bcfg.OnStateChange = func(from, to resilience.CircuitState) {
		log.Warn("search circuit changed", zap.Stringer("from", from), zap.Stringer("to", to))
	}

	return &Scraper{
		nav:     nav,
		ext:     ext,
		coord:   coord,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker(bcfg),
		log:     log,
	}
}

// SearchURL builds the search page URL for domain plus a site query such as
// "zoominfo".
func (s *Scraper) SearchURL(domain, query string) string {
	q := normalize.CleanDomain(domain)
	if query != "" {
		q += " " + query
	}
	return s.opts.SearchBaseURL + "?q=" + url.QueryEscape(q)
}

// CompanyFacts returns phone, headquarters, employees, revenue and industry
// for domain from its company profile page.
func (s *Scraper) CompanyFacts(ctx context.Context, domain string) (model.FactRecord, error) {
	if strings.TrimSpace(domain) == "" {
		return model.FactRecord{}, nil
	}
	return s.coord.Fetch(ctx, KindCompany, DomainKey(domain), func(ctx context.Context) (model.FactRecord, error) {
		return s.searchAndRead(ctx, domain, s.opts.ProfileQuery, PageProfileSearch, PageProfile)
	})
}

// DirectoryAddress returns address components, usually just the postal
// code, from the company's employee directory page. Callers use it to
// override the headquarters address.
func (s *Scraper) DirectoryAddress(ctx context.Context, domain string) (model.FactRecord, error) {
	if strings.TrimSpace(domain) == "" {
		return model.FactRecord{}, nil
	}
	return s.coord.Fetch(ctx, KindDirectory, DomainKey(domain), func(ctx context.Context) (model.FactRecord, error) {
		return s.searchAndRead(ctx, domain, s.opts.DirectoryQuery, PageDirectorySearch, PageDirectory)
	})
}

// Email returns a contact email. When both names are known the address is
// built as first.last@domain without any navigation; otherwise the email
// search page is read.
func (s *Scraper) Email(ctx context.Context, domain, first, last string) (model.FactRecord, error) {
	if strings.TrimSpace(domain) == "" {
		return model.FactRecord{}, nil
	}
	return s.coord.Fetch(ctx, KindEmail, PersonKey(domain, first, last), func(ctx context.Context) (model.FactRecord, error) {
		if email := normalize.BuildEmail(first, last, domain); email != "" {
			return model.FactRecord{Email: email}, nil
		}
		return s.readSearch(ctx, domain, s.opts.EmailQuery, PageEmailSearch)
	})
}

// searchAndRead opens the search page, follows the extracted link and
// extracts facts from the target page.
func (s *Scraper) searchAndRead(ctx context.Context, domain, query string, searchKind, targetKind PageKind) (model.FactRecord, error) {
	h, err := s.open(ctx, s.SearchURL(domain, query))
	if err != nil {
		return model.FactRecord{}, err
	}
	defer s.close(h)

	page, err := s.settleAndProbe(ctx, h, s.opts.SearchSettle)
	if err != nil {
		return model.FactRecord{}, err
	}
	link := s.ext.Link(searchKind, *page)
	if link.URL == "" {
		s.log.Info("no profile link on search page", zap.String("domain", domain), zap.String("page", string(searchKind)))
		return model.FactRecord{}, nil
	}

	if err := s.nav.Update(ctx, h, link.URL); err != nil {
		return model.FactRecord{}, eris.Wrapf(ErrNavigation, "update to %s: %v", link.URL, err)
	}
	page, err = s.settleAndProbe(ctx, h, s.opts.ProfileSettle)
	if err != nil {
		return model.FactRecord{}, err
	}

	facts := s.ext.Facts(targetKind, *page)
	facts.SourceURL = link.URL
	return facts, nil
}

// readSearch extracts facts directly from a search page.
func (s *Scraper) readSearch(ctx context.Context, domain, query string, kind PageKind) (model.FactRecord, error) {
	h, err := s.open(ctx, s.SearchURL(domain, query))
	if err != nil {
		return model.FactRecord{}, err
	}
	defer s.close(h)

	page, err := s.settleAndProbe(ctx, h, s.opts.SearchSettle)
	if err != nil {
		return model.FactRecord{}, err
	}
	return s.ext.Facts(kind, *page), nil
}

func (s *Scraper) open(ctx context.Context, target string) (Handle, error) {
	h, err := resilience.DoVal(ctx, s.opts.Retry, func(ctx context.Context) (Handle, error) {
		return s.nav.Open(ctx, target)
	})
	if err != nil {
		return "", eris.Wrapf(ErrNavigation, "open %s: %v", target, err)
	}
	return h, nil
}

func (s *Scraper) close(h Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.nav.Close(ctx, h); err != nil {
		s.log.Debug("close handle failed", zap.String("handle", string(h)), zap.Error(err))
	}
}

func (s *Scraper) settleAndProbe(ctx context.Context, h Handle, settle time.Duration) (*Page, error) {
	if err := s.opts.Clock.Sleep(ctx, settle); err != nil {
		return nil, eris.Wrap(err, "scrape: settle")
	}
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*Page, error) {
		return s.probe(ctx, h)
	})
}

// probe reads the page and, if it is a challenge page, waits for it to
// clear under the ChallengeWait policy.
func (s *Scraper) probe(ctx context.Context, h Handle) (*Page, error) {
	page, err := s.nav.Probe(ctx, h)
	if err != nil {
		return nil, eris.Wrapf(ErrNavigation, "probe: %v", err)
	}
	blocked, kind := DetectBlock(page)
	if !blocked {
		return page, nil
	}

	s.log.Warn("challenge page detected", zap.String("url", page.URL), zap.String("block", string(kind)))
	if s.opts.ChallengeWait.MaxAttempts <= 0 {
		return nil, eris.Wrapf(ErrBlocked, "%s at %s", kind, page.URL)
	}

	_, err = resilience.Poll(ctx, s.opts.Clock, s.opts.ChallengeWait, func(ctx context.Context) (bool, error) {
		p, err := s.nav.Probe(ctx, h)
		if err != nil {
			return false, nil
		}
		if still, _ := DetectBlock(p); still {
			return false, nil
		}
		page = p
		return true, nil
	})
	if err != nil {
		return nil, eris.Wrapf(ErrBlocked, "%s not cleared at %s", kind, page.URL)
	}
	s.log.Info("challenge cleared", zap.String("url", page.URL))
	return page, nil
}
