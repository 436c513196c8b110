package company

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trailing tokens dropped when building a name key, so
// "Acme Inc" and "Acme" share a key.
var legalSuffixes = map[string]bool{
	"llc": true, "inc": true, "incorporated": true, "corp": true,
	"corporation": true, "ltd": true, "limited": true, "lp": true,
	"llp": true, "plc": true, "gmbh": true, "ag": true, "sa": true,
	"bv": true, "nv": true, "pty": true, "co": true,
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokens lower-cases name, folds diacritics and splits it into alphanumeric
// tokens: "Société Générale, S.A." becomes [societe generale s a].
func Tokens(name string) []string {
	folded, _, err := transform.String(foldMarks, name)
	if err != nil {
		folded = name
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeName joins the tokens of name with single spaces.
func NormalizeName(name string) string {
	return strings.Join(Tokens(name), " ")
}

// NameKey is the exact-match key for name: its tokens without trailing
// legal-form suffixes.
func NameKey(name string) string {
	tokens := Tokens(name)
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// NormalizeDomain reduces a domain or website URL to its lower-cased host.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}
