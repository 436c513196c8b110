// Package company reconciles noisy company names from lead sheets against a
// reference directory of canonical names.
package company

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// MatchKind records how a reference name was found.
type MatchKind string

const (
	MatchNone     MatchKind = ""
	MatchExplicit MatchKind = "explicit"
	MatchDomain   MatchKind = "domain"
	MatchName     MatchKind = "name"
	MatchFuzzy    MatchKind = "fuzzy"
)

const (
	// DefaultFuzzyThreshold is the minimum fraction of significant base
	// tokens an entry must contain to be a fuzzy match.
	DefaultFuzzyThreshold = 0.8
	minFuzzyNameLen       = 4
	minSignificantToken   = 3
)

// Resolution is the detailed result of Resolve.
type Resolution struct {
	Name      string    `json:"name"`
	Reference string    `json:"reference,omitempty"`
	Match     MatchKind `json:"match,omitempty"`
	Merged    bool      `json:"merged"`
}

// Resolver maps a lead's company name to its canonical form.
type Resolver struct {
	dir       *Directory
	threshold float64
	log       *zap.Logger
}

// NewResolver creates a Resolver over dir, which may be nil or empty.
func NewResolver(dir *Directory) *Resolver {
	if dir == nil {
		dir = NewDirectory(nil)
	}
	return &Resolver{
		dir:       dir,
		threshold: DefaultFuzzyThreshold,
		log:       zap.L().With(zap.String("component", "company")),
	}
}

// Resolve returns the canonical company name for a lead. It never fails:
// without a usable reference the base name is returned unchanged.
func (r *Resolver) Resolve(baseName, domain, explicitReference string) string {
	return r.ResolveDetail(baseName, domain, explicitReference).Name
}

// ResolveDetail is Resolve with the reference and match kind that produced
// the result.
func (r *Resolver) ResolveDetail(baseName, domain, explicitReference string) Resolution {
	base := strings.TrimSpace(baseName)
	res := Resolution{Name: base}

	if ref := strings.TrimSpace(explicitReference); ref != "" {
		res.Reference, res.Match = ref, MatchExplicit
	} else if e, kind, ok := r.Lookup(base, domain); ok {
		res.Reference, res.Match = e.Name, kind
	}
	if res.Reference == "" {
		return res
	}

	res.Name = Merge(base, res.Reference)
	res.Merged = res.Name != base
	r.log.Debug("company resolved",
		zap.String("base", base),
		zap.String("reference", res.Reference),
		zap.String("match", string(res.Match)),
		zap.String("result", res.Name),
	)
	return res
}

// Lookup searches the directory by exact domain, then exact name key, then
// fuzzy token overlap.
func (r *Resolver) Lookup(name, domain string) (Entry, MatchKind, bool) {
	d := r.dir
	if d.Len() == 0 {
		return Entry{}, MatchNone, false
	}

	if dom := NormalizeDomain(domain); dom != "" {
		if i, ok := d.byDomain[dom]; ok {
			return d.entries[i], MatchDomain, true
		}
	}
	if key := NameKey(name); key != "" {
		if i, ok := d.byName[key]; ok {
			return d.entries[i], MatchName, true
		}
	}
	if i, ok := r.fuzzy(name); ok {
		return d.entries[i], MatchFuzzy, true
	}
	return Entry{}, MatchNone, false
}

// fuzzy returns the first entry, in directory order, containing at least
// the threshold fraction of the name's significant tokens. It does not look
// for a better-scoring entry further down.
func (r *Resolver) fuzzy(name string) (int, bool) {
	tokens := Tokens(name)
	if len(strings.Join(tokens, "")) < minFuzzyNameLen {
		return 0, false
	}
	var significant []string
	for _, t := range tokens {
		if len(t) >= minSignificantToken {
			significant = append(significant, t)
		}
	}
	if len(significant) == 0 {
		return 0, false
	}

	for i, set := range r.dir.tokenSet {
		var hits int
		for _, t := range significant {
			if set[t] {
				hits++
			}
		}
		if float64(hits)/float64(len(significant)) >= r.threshold {
			return i, true
		}
	}
	return 0, false
}

// Merge reconciles a lead's company name with a reference name. The
// reference replaces base only when base looks like an abbreviation
// placeholder: a lone 2–3 letter token, or a name that differs from the
// reference in exactly one token which is a two-letter abbreviation.
// Otherwise base is trusted.
func Merge(base, reference string) string {
	base, reference = strings.TrimSpace(base), strings.TrimSpace(reference)
	if reference == "" {
		return base
	}
	if base == "" {
		return reference
	}

	bt, rt := strings.Fields(base), strings.Fields(reference)
	if len(bt) == 1 && isAbbreviation(bt[0], 3) {
		return reference
	}
	if len(bt) != len(rt) {
		return base
	}

	diff := -1
	for i := range bt {
		if strings.EqualFold(bt[i], rt[i]) {
			continue
		}
		if diff >= 0 {
			return base
		}
		diff = i
	}
	if diff >= 0 && isAbbreviation(bt[diff], 2) {
		return strings.Join(rt, " ")
	}
	return base
}

func isAbbreviation(tok string, maxLen int) bool {
	n := 0
	for _, r := range tok {
		if !unicode.IsLetter(r) {
			return false
		}
		n++
	}
	return n >= 2 && n <= maxLen
}
