package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Band is an ordinal range bucket as used by the destination form's range
// dropdowns. Band 1 is the smallest range.
type Band int

// Value is the dropdown option value for b.
func (b Band) Value() string { return strconv.Itoa(int(b)) }

// EmployeeBandLabels names the employee bands, indexed by Band-1.
var EmployeeBandLabels = []string{
	"1 - 50", "51 - 200", "201 - 500", "501 - 1000",
	"1001 - 2000", "2001 - 5000", "5001 - 10000", "more than 10000",
}

// RevenueBandLabels names the revenue bands, indexed by Band-1.
var RevenueBandLabels = []string{
	"Upto 10 Million", "10 Million to 50 Million", "50 Million to 100 Million",
	"100 Million to 250 Million", "250 Million to 500 Million",
	"500 Million to 1 Billion", "1 Billion and Above",
}

// threshold maps magnitudes at or above Min to Band.
type threshold struct {
	Min  float64
	Band Band
}

// Employee lower bounds are exclusive in the form's labels ("51 - 200"), so
// each Min is the first integer of the band.
var employeeBands = []threshold{
	{10001, 8}, {5001, 7}, {2001, 6}, {1001, 5}, {501, 4}, {201, 3}, {51, 2},
}

// Revenue thresholds are in millions.
var revenueBands = []threshold{
	{1000, 7}, {500, 6}, {250, 5}, {100, 4}, {50, 3}, {10, 2},
}

var (
	magnitudeRe = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*(trillion|billion|million|thousand|bn|mm|mil|k|m|b|t)?\b\s*(\+)?`)
	currencyRe  = regexp.MustCompile(`[,$€£¥]`)
)

// magnitude is a parsed numeric literal with its scale multiplier.
type magnitude struct {
	Value float64
	Scale float64
	Plus  bool
}

func parseMagnitude(s string) (magnitude, bool) {
	s = currencyRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	if s == "" {
		return magnitude{}, false
	}
	m := magnitudeRe.FindStringSubmatch(s)
	if m == nil {
		return magnitude{}, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return magnitude{}, false
	}
	out := magnitude{Value: v, Scale: 1, Plus: m[3] != ""}
	switch m[2] {
	case "k", "thousand":
		out.Scale = 1e3
	case "m", "mm", "mil", "million":
		out.Scale = 1e6
	case "b", "bn", "billion":
		out.Scale = 1e9
	case "t", "trillion":
		out.Scale = 1e12
	}
	return out, true
}

func classify(v float64, bands []threshold) (Band, bool) {
	if v <= 0 {
		return 0, false
	}
	for _, t := range bands {
		if v >= t.Min {
			return t.Band, true
		}
	}
	return 1, true
}

// ClassifyEmployees maps an employee count such as "75", "1,200", "2.5K" or
// "10K+" onto the 8 employee bands. A trailing "+" means "more than". The
// second result is false for unparsable, zero or negative input. For ranges
// like "51-200" the lower bound is used.
func ClassifyEmployees(s string) (Band, bool) {
	m, ok := parseMagnitude(s)
	if !ok {
		return 0, false
	}
	n := m.Value * m.Scale
	if m.Plus {
		n++
	}
	return classify(n, employeeBands)
}

// ClassifyRevenue maps a revenue figure such as "$150 Million", "$6.8
// Billion" or "$25M" onto the 7 revenue bands. A figure without a scale word
// is read as dollars.
func ClassifyRevenue(s string) (Band, bool) {
	m, ok := parseMagnitude(s)
	if !ok {
		return 0, false
	}
	millions := m.Value * m.Scale / 1e6
	if m.Plus {
		millions += 1e-6
	}
	return classify(millions, revenueBands)
}
