// Package normalize turns free-text scraped facts into structured,
// form-ready values: address components, employee and revenue bands, phone
// codes, person names and URLs. Every function here is pure.
package normalize

import (
	"regexp"
	"strings"
)

// Address holds the components decomposed from a headquarters string.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// IsZero reports whether every component is blank.
func (a Address) IsZero() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.ZipCode == ""
}

// Override returns a with each non-empty field of o taking precedence.
func (a Address) Override(o Address) Address {
	if o.Street != "" {
		a.Street = o.Street
	}
	if o.City != "" {
		a.City = o.City
	}
	if o.State != "" {
		a.State = o.State
	}
	if o.ZipCode != "" {
		a.ZipCode = o.ZipCode
	}
	return a
}

var (
	usZip     = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)
	ukZip     = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}$`)
	caZip     = regexp.MustCompile(`(?i)^[A-Z]\d[A-Z]\s\d[A-Z]\d$`)
	fourDigit = regexp.MustCompile(`^\d{4}$`)
	fiveDigit = regexp.MustCompile(`^\d{5}$`)
	sixDigit  = regexp.MustCompile(`^\d{6}$`)
	jpZip     = regexp.MustCompile(`^\d{3}-\d{4}$`)
	nlZip     = regexp.MustCompile(`(?i)^\d{4}\s[A-Z]{2}$`)
	brZip     = regexp.MustCompile(`^\d{5}-\d{3}$`)

	genericZip = regexp.MustCompile(`^\d{4,5}$`)
)

// countryZip maps an upper-cased country hint to its postal code pattern.
var countryZip = map[string]*regexp.Regexp{
	"US": usZip, "USA": usZip,
	"UK": ukZip, "UNITED KINGDOM": ukZip,
	"CA": caZip, "CANADA": caZip,
	"AU": fourDigit, "AUSTRALIA": fourDigit,
	"AT": fourDigit, "AUSTRIA": fourDigit,
	"CH": fourDigit, "SWITZERLAND": fourDigit,
	"JP": jpZip, "JAPAN": jpZip,
	"DE": fiveDigit, "GERMANY": fiveDigit,
	"FR": fiveDigit, "FRANCE": fiveDigit,
	"IT": fiveDigit, "ITALY": fiveDigit,
	"ES": fiveDigit, "SPAIN": fiveDigit,
	"MX": fiveDigit, "MEXICO": fiveDigit,
	"NL": nlZip, "NETHERLANDS": nlZip,
	"IN": sixDigit, "INDIA": sixDigit,
	"BR": brZip, "BRAZIL": brZip,
}

// fallbackZip is scanned, in order, anywhere in the text when no part of the
// address was recognized as a postal code.
var fallbackZip = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}\b`), // UK
	regexp.MustCompile(`(?i)\b[A-Z]\d[A-Z]\s\d[A-Z]\d\b`),           // Canada
	regexp.MustCompile(`\b\d{5}-\d{3}\b`),                           // Brazil
	regexp.MustCompile(`\b\d{3}-\d{4}\b`),                           // Japan
	regexp.MustCompile(`(?i)\b\d{5}\s[A-Z]{2}\b`),                   // Netherlands
	regexp.MustCompile(`\b\d{4,6}\b`),
}

var countryHint = regexp.MustCompile(`^[A-Z\s]+$`)

// ParseAddress decomposes a free-text headquarters string such as
// "123 Main St, Springfield, IL, 62704, USA". Non-empty fields of override
// win over the parsed ones.
func ParseAddress(hq string, override Address) Address {
	var out Address
	if strings.TrimSpace(hq) != "" {
		out = parseHeadquarters(hq)
	}
	return out.Override(override)
}

func parseHeadquarters(hq string) Address {
	clean := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(hq), "..."))
	parts := splitParts(clean)

	patterns := []*regexp.Regexp{genericZip}
	if len(parts) > 0 {
		last := strings.ToUpper(parts[len(parts)-1])
		if len(last) > 2 && countryHint.MatchString(last) {
			if p, ok := countryZip[last]; ok {
				patterns = append([]*regexp.Regexp{p}, patterns...)
			}
		}
	}

	var out Address
	zipIndex := -1
	for i, part := range parts {
		if matchAny(patterns, part) {
			zipIndex = i
			out.ZipCode = part
			break
		}
	}

	switch {
	case zipIndex >= 1:
		out.Street = parts[0]
		out.City = parts[1]
		// A zip at index 2 leaves no room for a state part.
		if zipIndex > 2 {
			out.State = parts[2]
		}
	default:
		positional := []*string{&out.Street, &out.City, &out.State}
		for i := 0; i < len(parts) && i < len(positional); i++ {
			*positional[i] = parts[i]
		}
		if zipIndex < 0 && len(parts) >= 4 {
			out.ZipCode = parts[3]
		}
	}

	if out.ZipCode == "" {
		out.ZipCode = scanZip(clean, hq)
	}
	return out
}

func splitParts(s string) []string {
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func scanZip(sources ...string) string {
	for _, src := range sources {
		for _, p := range fallbackZip {
			if m := p.FindString(src); m != "" {
				return m
			}
		}
	}
	return ""
}
