package company

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/fetcher"
)

// Entry is one canonical company in the reference directory.
type Entry struct {
	Name   string   `json:"name"`
	Tokens []string `json:"tokens"`
	Domain string   `json:"domain,omitempty"`
}

// NewEntry builds an Entry, normalizing its tokens and domain.
func NewEntry(name, domain string) Entry {
	return Entry{
		Name:   strings.TrimSpace(name),
		Tokens: Tokens(name),
		Domain: NormalizeDomain(domain),
	}
}

// Directory is the read-only reference directory. Lookups preserve the
// order entries were loaded in.
type Directory struct {
	entries  []Entry
	tokenSet []map[string]bool
	byDomain map[string]int
	byName   map[string]int
}

// NewDirectory indexes entries. Entries with blank names are dropped. When
// two entries share a domain or name key, the first one wins.
func NewDirectory(entries []Entry) *Directory {
	d := &Directory{
		byDomain: make(map[string]int),
		byName:   make(map[string]int),
	}
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		i := len(d.entries)
		d.entries = append(d.entries, e)

		set := make(map[string]bool, len(e.Tokens))
		for _, t := range e.Tokens {
			set[t] = true
		}
		d.tokenSet = append(d.tokenSet, set)

		if e.Domain != "" {
			if _, ok := d.byDomain[e.Domain]; !ok {
				d.byDomain[e.Domain] = i
			}
		}
		if key := NameKey(e.Name); key != "" {
			if _, ok := d.byName[key]; !ok {
				d.byName[key] = i
			}
		}
	}
	return d
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Entries returns a copy of the entries in load order.
func (d *Directory) Entries() []Entry {
	if d == nil {
		return nil
	}
	return append([]Entry(nil), d.entries...)
}

var (
	nameColumns   = []string{"Company Name", "Company", "Name", "name"}
	domainColumns = []string{"Link", "Domain", "Website"}
)

// LoadDirectory reads a reference directory from a CSV or XLSX file or URL.
// A missing local file is not an error: it logs a warning and returns an
// empty directory. dl may be nil for local paths.
func LoadDirectory(ctx context.Context, src string, dl fetcher.Downloader) (*Directory, error) {
	log := zap.L().With(zap.String("component", "company"), zap.String("source", src))
	if strings.TrimSpace(src) == "" {
		log.Warn("no reference directory configured")
		return NewDirectory(nil), nil
	}

	tbl, err := fetcher.ReadTable(ctx, src, dl)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("reference directory not found; resolution will use CSV names only")
		return NewDirectory(nil), nil
	}
	if err != nil {
		return NewDirectory(nil), eris.Wrap(err, "company: load directory")
	}

	nameCol := tbl.Column(nameColumns...)
	if nameCol == "" {
		return NewDirectory(nil), eris.Errorf("company: directory %s has no name column (want one of %v)", src, nameColumns)
	}
	domainCol := tbl.Column(domainColumns...)

	entries := make([]Entry, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		var domain string
		if domainCol != "" {
			domain = row[domainCol]
		}
		entries = append(entries, NewEntry(row[nameCol], domain))
	}
	dir := NewDirectory(entries)
	log.Info("reference directory loaded", zap.Int("entries", dir.Len()))
	return dir, nil
}
