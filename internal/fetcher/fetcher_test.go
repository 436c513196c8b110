package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/resilience"
)

const leadsCSV = "\ufeffCompany,Domain or Website,\"First Name, Last Name\",Title\n" +
	"\"Acme, Inc.\",acme.com,\"Jane, Doe\",\"VP \"\"Ops\"\"\"\n" +
	",,,\n" +
	"Globex,globex.com,Hank Scorpio\n"

func TestParseCSV_HeadersAndQuoting(t *testing.T) {
	tbl, err := ParseCSV(context.Background(), strings.NewReader(leadsCSV), CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Company", "Domain or Website", "First Name, Last Name", "Title"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Acme, Inc.", tbl.Rows[0]["Company"])
	assert.Equal(t, "Jane, Doe", tbl.Rows[0]["First Name, Last Name"])
	assert.Equal(t, `VP "Ops"`, tbl.Rows[0]["Title"])
	assert.Equal(t, "", tbl.Rows[1]["Title"], "short rows are padded")
}

func TestParseCSV_Strict(t *testing.T) {
	_, err := ParseCSV(context.Background(), strings.NewReader("a,b\nx\"y,z\n"), CSVOptions{Strict: true})
	assert.Error(t, err)

	tbl, err := ParseCSV(context.Background(), strings.NewReader("a,b\nx\"y,z\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, `x"y`, tbl.Rows[0]["a"])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	rows, errs := StreamCSV(context.Background(), strings.NewReader(" a , b \n"), CSVOptions{TrimSpace: true})
	var got [][]string
	for r := range rows {
		got = append(got, r)
	}
	require.NoError(t, <-errs)
	assert.Equal(t, [][]string{{"a", "b"}}, got)
}

func TestNewTable_DuplicateHeaderKeepsFirst(t *testing.T) {
	tbl := NewTable([][]string{{"Name", "name", "Name"}, {"a", "b", "c"}})
	assert.Equal(t, "a", tbl.Rows[0]["Name"])
	assert.Equal(t, "b", tbl.Rows[0]["name"])
	assert.Equal(t, "Name", tbl.Column("NAME"))
	assert.Equal(t, "", tbl.Column("Link"))
}

func TestNewTable_Empty(t *testing.T) {
	tbl := NewTable(nil)
	assert.Empty(t, tbl.Header)
	assert.Empty(t, tbl.Rows)
}

func writeXLSX(t *testing.T, dir string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(dir, "companies.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeXLSX(t, t.TempDir(), [][]string{
		{"Company Name", "Link"},
		{"Acme Corp Global", "https://acme.com"},
	})

	tbl, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "Acme Corp Global", tbl.Rows[0]["Company Name"])

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	assert.Error(t, err)
	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.Error(t, err)
}

func TestReadTable_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(leadsCSV), 0o644))

	tbl, err := ReadTable(context.Background(), csvPath, nil)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)

	xlsxPath := writeXLSX(t, dir, [][]string{{"Name"}, {"Initech"}})
	tbl, err = ReadTable(context.Background(), xlsxPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "Initech", tbl.Rows[0]["Name"])

	_, err = ReadTable(context.Background(), filepath.Join(dir, "nope.csv"), nil)
	assert.Error(t, err)
}

func TestReadTable_RemoteNeedsDownloader(t *testing.T) {
	_, err := ReadTable(context.Background(), "https://example.com/leads.csv", nil)
	assert.Error(t, err)
}

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		RatePerSec: 1000,
		Retry: resilience.RetryConfig{
			MaxAttempts: 3,
			Clock:       resilience.NewManualClock(time.Now()),
		},
	})
}

func TestHTTPFetcher_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("Company\nAcme\n"))
	}))
	defer srv.Close()

	tbl, err := ReadTable(context.Background(), srv.URL+"/leads.csv?token=x", newTestFetcher())
	require.NoError(t, err)
	assert.Equal(t, "Acme", tbl.Rows[0]["Company"])
	assert.EqualValues(t, 2, calls.Load())
}

func TestHTTPFetcher_PermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Download(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPFetcher_DownloadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteLogCSV(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	rows := []model.LogRow{
		{Timestamp: ts, Status: model.LogSuccess, Company: "Acme, Inc.", Domain: "acme.com", PersonName: "Jane Doe", Message: "Form filled"},
		{Timestamp: ts, Status: model.LogError, Company: "Globex", Message: `campaign "Q3" not found`},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLogCSV(&buf, rows))

	want := "Timestamp,Status,Company,Domain,Name,Message\n" +
		"2024-05-01T12:30:00Z,SUCCESS,\"Acme, Inc.\",acme.com,Jane Doe,Form filled\n" +
		"2024-05-01T12:30:00Z,ERROR,Globex,,,\"campaign \"\"Q3\"\" not found\"\n"
	assert.Equal(t, want, buf.String())
}
