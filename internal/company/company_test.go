package company

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory() *Directory {
	return NewDirectory([]Entry{
		NewEntry("Globex Corporation", "https://www.globex.com/"),
		NewEntry("Initech Inc", ""),
		NewEntry("Northwind Traders International", "northwind.io"),
		NewEntry("Northwind Traders", "northwindtraders.com"),
		NewEntry("Société Générale", "societegenerale.com"),
	})
}

func TestResolve_SpecExamples(t *testing.T) {
	r := NewResolver(testDirectory())

	assert.Equal(t, "Acme Corp Global", r.Resolve("ABC", "foo.com", "Acme Corp Global"))
	assert.Equal(t, "Acme Corp DE", r.Resolve("Acme Corp US", "", "Acme Corp DE"))
	assert.Equal(t, "Acme Corporation", r.Resolve("Acme Corporation", "", "Acme Corp"))
}

func TestResolve_NoMatchReturnsBase(t *testing.T) {
	r := NewResolver(testDirectory())
	assert.Equal(t, "Umbrella Labs", r.Resolve("  Umbrella Labs ", "umbrella.com", ""))
	assert.Equal(t, "Umbrella Labs", NewResolver(nil).Resolve("Umbrella Labs", "", ""))
}

func TestResolve_ExplicitBeatsLookup(t *testing.T) {
	r := NewResolver(testDirectory())
	res := r.ResolveDetail("GX", "globex.com", "Gamma Xray")
	assert.Equal(t, MatchExplicit, res.Match)
	assert.Equal(t, "Gamma Xray", res.Name)
	assert.True(t, res.Merged)
}

func TestResolve_DomainLookupReplacesPlaceholder(t *testing.T) {
	r := NewResolver(testDirectory())
	res := r.ResolveDetail("GX", "http://globex.com/about", "")
	assert.Equal(t, MatchDomain, res.Match)
	assert.Equal(t, "Globex Corporation", res.Name)
}

func TestLookup(t *testing.T) {
	r := NewResolver(testDirectory())

	tests := []struct {
		name, domain string
		want         string
		kind         MatchKind
	}{
		{"whatever", "globex.com", "Globex Corporation", MatchDomain},
		{"INITECH", "", "Initech Inc", MatchName},
		{"Initech, LLC", "", "Initech Inc", MatchName},
		{"Societe Generale", "", "Société Générale", MatchName},
		{"Northwind Traders Ltd", "", "Northwind Traders", MatchName},
		// Both Northwind entries contain every significant token; the first
		// in directory order wins.
		{"Northwind Traders NW", "", "Northwind Traders International", MatchFuzzy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, kind, ok := r.Lookup(tt.name, tt.domain)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Name)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestLookup_FuzzyRejects(t *testing.T) {
	r := NewResolver(testDirectory())

	_, _, ok := r.Lookup("Northwind Widgets Shipping", "")
	assert.False(t, ok, "one of three significant tokens is below threshold")

	_, _, ok = r.Lookup("N.W.", "")
	assert.False(t, ok, "names shorter than four characters never fuzzy match")
}

func TestMerge(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"IBM", "International Business Machines", "International Business Machines"},
		{"GE", "General Electric", "General Electric"},
		{"Acme Corp US", "Acme Corp DE", "Acme Corp DE"},
		{"Acme Corp USA", "Acme Corp DEU", "Acme Corp USA"},
		{"Acme Widgets US", "Acme Corp DE", "Acme Widgets US"},
		{"Acme Corp", "Acme Corp", "Acme Corp"},
		{"Acme", "Acme Holdings", "Acme"},
		{"A1", "Alpha One", "A1"},
		{"", "Acme", "Acme"},
		{"Acme", "", "Acme"},
	}
	for _, tt := range tests {
		t.Run(tt.base+"->"+tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.base, tt.ref))
		})
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"societe", "generale", "s", "a"}, Tokens("Société Générale, S.A."))
	assert.Equal(t, "acme co", NormalizeName("  ACME   & Co. "))
	assert.Equal(t, "acme", NameKey("Acme Corp Inc"))
	assert.Equal(t, "inc", NameKey("Inc"))
	assert.Equal(t, "acme.com", NormalizeDomain("HTTPS://www.Acme.com/contact?x=1"))
}

func TestNewDirectory_FirstWins(t *testing.T) {
	d := NewDirectory([]Entry{
		NewEntry("Acme One", "acme.com"),
		NewEntry("Acme Two", "acme.com"),
		NewEntry("", "blank.com"),
	})
	assert.Equal(t, 2, d.Len())
	e, kind, ok := NewResolver(d).Lookup("", "acme.com")
	require.True(t, ok)
	assert.Equal(t, MatchDomain, kind)
	assert.Equal(t, "Acme One", e.Name)
}

func TestLoadDirectory_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference_companies.csv")
	content := "Company Name,Link\n\"Globex Corporation\",https://globex.com\nInitech Inc,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	d, err := LoadDirectory(context.Background(), path, nil)
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())
	assert.Equal(t, "globex.com", d.Entries()[0].Domain)
}

func TestLoadDirectory_MissingIsNotFatal(t *testing.T) {
	d, err := LoadDirectory(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())

	d, err = LoadDirectory(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestLoadDirectory_NoNameColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Foo,Bar\n1,2\n"), 0o644))

	d, err := LoadDirectory(context.Background(), path, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, d.Len())
}
