package dropdown

import (
	"strings"
	"unicode"
)

// Rule is the matching rule that accepted a candidate.
type Rule int

const (
	RuleExact Rule = iota
	RulePrefix
	RuleSubstring
	RuleSubsequence
)

func (r Rule) String() string {
	switch r {
	case RuleExact:
		return "exact"
	case RulePrefix:
		return "prefix"
	case RuleSubstring:
		return "substring"
	case RuleSubsequence:
		return "subsequence"
	default:
		return "unknown"
	}
}

// Match describes the accepted candidate.
type Match struct {
	Index int
	Text  string
	Rule  Rule
	// Alnum is set when the match only succeeded after both strings were
	// reduced to letters and digits.
	Alnum bool
}

var rules = []Rule{RuleExact, RulePrefix, RuleSubstring, RuleSubsequence}

// Find returns the first candidate, in list order, that query matches by
// any rule. Match.Rule is the strongest rule that candidate satisfied. When
// nothing matches, the same rules run again on alphanumeric-only strings,
// provided the reduced query has more than two characters.
func Find(query string, candidates []string) (Match, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Match{}, false
	}
	if m, ok := find(q, candidates, fold); ok {
		return m, true
	}
	if aq := alnum(q); len(aq) > 2 {
		if m, ok := find(aq, candidates, alnum); ok {
			m.Alnum = true
			return m, true
		}
	}
	return Match{}, false
}

func find(q string, candidates []string, norm func(string) string) (Match, bool) {
	for i, raw := range candidates {
		c := norm(raw)
		if c == "" {
			continue
		}
		for _, rule := range rules {
			if accepts(rule, c, q) {
				return Match{Index: i, Text: strings.TrimSpace(raw), Rule: rule}, true
			}
		}
	}
	return Match{}, false
}

func accepts(rule Rule, candidate, q string) bool {
	switch rule {
	case RuleExact:
		return candidate == q
	case RulePrefix:
		return strings.HasPrefix(candidate, q)
	case RuleSubstring:
		return strings.Contains(candidate, q)
	case RuleSubsequence:
		return IsSubsequence(q, candidate)
	}
	return false
}

// IsSubsequence reports whether every rune of q appears in s in order, not
// necessarily contiguously.
func IsSubsequence(q, s string) bool {
	qr := []rune(q)
	i := 0
	for _, r := range s {
		if i < len(qr) && r == qr[i] {
			i++
		}
	}
	return i == len(qr)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// Option is one entry of a native select element.
type Option struct {
	Value string
	Text  string
}

// FindOption picks the option for value on a native select: exact value or
// text first, then an option whose value or text contains value, then an
// option whose text is contained in value. Placeholder options with an
// empty value are never chosen by the fuzzy steps.
func FindOption(value string, opts []Option) (Option, bool) {
	if value == "" {
		return Option{}, false
	}
	for _, o := range opts {
		if o.Value == value || strings.TrimSpace(o.Text) == value {
			return o, true
		}
	}
	v := strings.ToLower(value)
	for _, o := range opts {
		if o.Value == "" {
			continue
		}
		if strings.Contains(strings.ToLower(o.Value), v) || strings.Contains(strings.ToLower(o.Text), v) {
			return o, true
		}
	}
	for _, o := range opts {
		t := strings.ToLower(strings.TrimSpace(o.Text))
		if o.Value == "" || t == "" {
			continue
		}
		if strings.Contains(v, t) {
			return o, true
		}
	}
	return Option{}, false
}
