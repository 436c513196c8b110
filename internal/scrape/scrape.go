// Package scrape coordinates best-effort fact scraping from third-party
// profile pages reached through a search engine. Page access sits behind
// Navigator and field extraction behind Extractor; the Coordinator adds
// caching, single-flight and per-kind serialization on top.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/xconmik/buildata-automation/internal/model"
)

// Kind names a class of scrape. Requests of one kind share a scraping
// surface and run one at a time.
type Kind string

const (
	KindCompany   Kind = "company"
	KindDirectory Kind = "directory"
	KindEmail     Kind = "email"
)

// PageKind tells an Extractor what kind of page it is looking at.
type PageKind string

const (
	PageProfileSearch   PageKind = "profile_search"
	PageProfile         PageKind = "profile"
	PageDirectorySearch PageKind = "directory_search"
	PageDirectory       PageKind = "directory"
	PageEmailSearch     PageKind = "email_search"
)

// Page is the settled content of a rendering context.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}

// Handle identifies one isolated rendering context opened by a Navigator.
type Handle string

var (
	// ErrProbeTimeout is returned by Navigator.Probe when content never
	// settles.
	ErrProbeTimeout = eris.New("scrape: page did not settle")
	// ErrNavigation marks a page that could not be reached or read.
	ErrNavigation = eris.New("scrape: navigation failed")
	// ErrBlocked marks a captcha or bot-challenge page.
	ErrBlocked = eris.New("scrape: blocked by challenge page")
)

// Navigator opens, moves and closes rendering contexts and reports their
// content once settled.
type Navigator interface {
	Open(ctx context.Context, url string) (Handle, error)
	Update(ctx context.Context, h Handle, url string) error
	Close(ctx context.Context, h Handle) error
	Probe(ctx context.Context, h Handle) (*Page, error)
}

// Extractor pulls best-effort records out of a page. It never fails;
// anything it cannot find is left blank.
type Extractor interface {
	Facts(kind PageKind, page Page) model.FactRecord
	Link(kind PageKind, page Page) model.LinkRecord
}
