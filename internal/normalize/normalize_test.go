package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		hq       string
		override Address
		want     Address
	}{
		{
			name: "us with country",
			hq:   "123 Main St, Springfield, IL, 62704, USA",
			want: Address{Street: "123 Main St", City: "Springfield", State: "IL", ZipCode: "62704"},
		},
		{
			name: "uk postcode via country pattern",
			hq:   "10 Downing St, London, SW1A 1AA, UNITED KINGDOM",
			want: Address{Street: "10 Downing St", City: "London", ZipCode: "SW1A 1AA"},
		},
		{
			name: "zip at index two leaves state blank",
			hq:   "742 Evergreen Terrace, Springfield, 62704",
			want: Address{Street: "742 Evergreen Terrace", City: "Springfield", ZipCode: "62704"},
		},
		{
			name: "zip at index one",
			hq:   "Hauptstrasse 5, 80331, Germany",
			want: Address{Street: "Hauptstrasse 5", City: "80331", ZipCode: "80331"},
		},
		{
			name: "truncation marker stripped",
			hq:   "1 Infinite Loop, Cupertino, CA, 95014...",
			want: Address{Street: "1 Infinite Loop", City: "Cupertino", State: "CA", ZipCode: "95014"},
		},
		{
			name: "no zip assigns positionally",
			hq:   "Acme Plaza, Berlin, Germany",
			want: Address{Street: "Acme Plaza", City: "Berlin", State: "Germany"},
		},
		{
			name: "four parts without a zip pattern",
			hq:   "Acme Plaza, Berlin, Brandenburg, D-10115",
			want: Address{Street: "Acme Plaza", City: "Berlin", State: "Brandenburg", ZipCode: "D-10115"},
		},
		{
			name: "fallback scan finds canadian code",
			hq:   "Kanata Business Park, Ottawa ON K2K 3E7...",
			want: Address{Street: "Kanata Business Park", City: "Ottawa ON K2K 3E7", ZipCode: "K2K 3E7"},
		},
		{
			name: "country specific pattern before generic",
			hq:   "Rua Augusta 100, Sao Paulo, SP, 01304-001, BRAZIL",
			want: Address{Street: "Rua Augusta 100", City: "Sao Paulo", State: "SP", ZipCode: "01304-001"},
		},
		{
			name:     "override wins field by field",
			hq:       "123 Main St, Springfield, IL, 62704, USA",
			override: Address{ZipCode: "62701", City: "Chatham"},
			want:     Address{Street: "123 Main St", City: "Chatham", State: "IL", ZipCode: "62701"},
		},
		{
			name:     "override only",
			override: Address{ZipCode: "60601"},
			want:     Address{ZipCode: "60601"},
		},
		{
			name: "empty",
			want: Address{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddress(tt.hq, tt.override))
		})
	}
}

func TestAddress_IsZero(t *testing.T) {
	assert.True(t, Address{}.IsZero())
	assert.False(t, Address{State: "IL"}.IsZero())
}

func TestClassifyEmployees(t *testing.T) {
	tests := []struct {
		in   string
		want Band
		ok   bool
	}{
		{"10K+", 8, true},
		{"75", 2, true},
		{"50", 1, true},
		{"51", 2, true},
		{"1,200", 5, true},
		{"2.5K", 6, true},
		{"10,000", 7, true},
		{"12000 employees", 8, true},
		{"51-200", 2, true},
		{"0.5", 1, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"", 0, false},
		{"unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ClassifyEmployees(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyRevenue(t *testing.T) {
	tests := []struct {
		in   string
		want Band
		ok   bool
	}{
		{"$6.8 Billion", 7, true},
		{"$1B", 7, true},
		{"$999 Million", 6, true},
		{"$250 Million", 5, true},
		{"$150 Million", 4, true},
		{"$75M", 3, true},
		{"$10 million", 2, true},
		{"$4.2 Million", 1, true},
		{"$500K", 1, true},
		{"$25,000,000", 2, true},
		{"$0", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ClassifyRevenue(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBand_Value(t *testing.T) {
	assert.Equal(t, "8", Band(8).Value())
	assert.Len(t, EmployeeBandLabels, 8)
	assert.Len(t, RevenueBandLabels, 7)
}

func TestSplitPhone(t *testing.T) {
	code, local := SplitPhone("+49 4971329810", "")
	assert.Equal(t, "49", code)
	assert.Equal(t, "4971329810", local)

	code, local = SplitPhone("+1 (555) 010-0200", "+1")
	assert.Equal(t, "1", code)
	assert.Equal(t, "(555) 010-0200", local)

	code, local = SplitPhone("", "+44")
	assert.Equal(t, "44", code)
	assert.Empty(t, local)
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("Jane, Doe")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = SplitName("Mary Ann Smith")
	assert.Equal(t, "Mary", first)
	assert.Equal(t, "Smith", last)

	first, last = SplitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)
}

func TestURLs(t *testing.T) {
	assert.Equal(t, "acme.com", CleanDomain("https://www.acme.com/"))
	assert.Equal(t, "https://acme.com", WebsiteURL("http://acme.com//"))
	assert.Equal(t, "https://www.acme.com", WebsiteURL("www.acme.com"))
	assert.Empty(t, WebsiteURL("  "))

	assert.Equal(t, "https://www.linkedin.com/company/acme/about",
		LinkedInAboutURL("https://www.linkedin.com/company/acme/"))
	assert.Equal(t, "https://www.linkedin.com/company/acme/about/",
		LinkedInAboutURL("https://www.linkedin.com/company/acme/about/"))
}

func TestBuildEmail(t *testing.T) {
	assert.Equal(t, "jane.doe@acme.com", BuildEmail("Jane", "Doe", "https://www.acme.com/"))
	assert.Empty(t, BuildEmail("Jane", "", "acme.com"))
}

func TestZipDigits(t *testing.T) {
	assert.Equal(t, "62704", ZipDigits("62704-1234"))
	assert.Empty(t, ZipDigits("SW1A 1AA"))
}

func TestInferSeniority(t *testing.T) {
	tests := map[string]string{
		"":                            "",
		"VP, Operations":              "Vice President",
		"Senior Vice President Sales": "Vice President",
		"Head of IT":                  "Head",
		"Director of Engineering":     "Director",
		"Plant Manager":               "Manager",
		"Process Engineer":            "Individual Contributor",
	}
	for title, want := range tests {
		assert.Equal(t, want, InferSeniority(title), title)
	}
}

func TestInferDepartment(t *testing.T) {
	tests := map[string]string{
		"":                           "",
		"Head of IT":                 "IT",
		"Digital Marketing Lead":     "Marketing",
		"VP Operations":              "Operations",
		"Director of Engineering":    "Engineering",
		"Chief Financial Officer":    "Other",
		"Information Technology Mgr": "IT",
	}
	for title, want := range tests {
		assert.Equal(t, want, InferDepartment(title), title)
	}
}
