package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a headered sheet with each row keyed by header.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// NewTable turns raw records into a Table. The first record is the header.
// A leading byte-order mark is dropped, header cells are trimmed, duplicate
// headers keep their first column, and fully blank rows are skipped.
func NewTable(records [][]string) *Table {
	t := &Table{}
	if len(records) == 0 {
		return t
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = strings.TrimSpace(h)
	}
	t.Header = header

	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if _, dup := row[h]; dup {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Column returns the first header present in t out of names, matched
// case-insensitively, or "".
func (t *Table) Column(names ...string) string {
	for _, n := range names {
		for _, h := range t.Header {
			if strings.EqualFold(h, n) {
				return h
			}
		}
	}
	return ""
}

// ReadTable loads a CSV or XLSX table from a local path or an http(s) URL.
// The format is chosen by extension; anything that is not .xlsx is read as
// CSV. d may be nil when src is a local path.
func ReadTable(ctx context.Context, src string, d Downloader) (*Table, error) {
	isXLSX := strings.EqualFold(filepath.Ext(stripQuery(src)), ".xlsx")

	if !isRemote(src) {
		if isXLSX {
			return ReadXLSX(src, XLSXOptions{})
		}
		f, err := os.Open(src)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", src)
		}
		defer f.Close() //nolint:errcheck
		return ParseCSV(ctx, f, CSVOptions{})
	}

	if d == nil {
		return nil, eris.Errorf("fetcher: no downloader for %s", src)
	}
	body, err := d.Download(ctx, src)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	if isXLSX {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read xlsx body")
		}
		return ParseXLSX(data, XLSXOptions{})
	}
	return ParseCSV(ctx, body, CSVOptions{})
}

func isRemote(src string) bool {
	l := strings.ToLower(src)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func stripQuery(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i]
	}
	return src
}
