package normalize

import (
	"regexp"
	"strings"
)

var (
	phoneCodeRe = regexp.MustCompile(`^\+?(\d{1,4})`)
	phoneCodeCl = regexp.MustCompile(`[+\s-]`)
	nameSplitRe = regexp.MustCompile(`[, ]`)
	zipDigitsRe = regexp.MustCompile(`\d{4,6}`)
	schemeRe    = regexp.MustCompile(`(?i)^https?://`)
	aboutRe     = regexp.MustCompile(`/about/?$`)
)

// SplitPhone separates a country calling code from a phone number. When
// code is already known (from the lead row) it is cleaned and stripped from
// the front of phone; otherwise the leading 1–4 digits of phone are used.
//
//	SplitPhone("+49 4971329810", "") // "49", "4971329810"
func SplitPhone(phone, code string) (string, string) {
	phone = strings.TrimSpace(phone)
	if code == "" && phone != "" {
		if m := phoneCodeRe.FindStringSubmatch(phone); m != nil {
			code = m[1]
		}
	}
	code = phoneCodeCl.ReplaceAllString(code, "")
	if phone == "" || code == "" {
		return code, phone
	}
	local := strings.TrimPrefix(phone, "+")
	local = strings.TrimSpace(strings.TrimPrefix(local, code))
	return code, local
}

// SplitName returns the first and last tokens of a "First, Last" or
// "First Middle Last" name.
func SplitName(full string) (first, last string) {
	var tokens []string
	for _, t := range nameSplitRe.Split(full, -1) {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return tokens[0], tokens[len(tokens)-1]
	}
}

// CleanDomain strips scheme, "www." and trailing slashes from a domain or
// website value.
func CleanDomain(d string) string {
	d = schemeRe.ReplaceAllString(strings.TrimSpace(d), "")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimRight(d, "/")
}

// WebsiteURL returns d as an https URL, or "" for a blank domain.
func WebsiteURL(d string) string {
	d = strings.TrimRight(schemeRe.ReplaceAllString(strings.TrimSpace(d), ""), "/")
	if d == "" {
		return ""
	}
	return "https://" + d
}

// LinkedInAboutURL points a company LinkedIn URL at its /about page.
func LinkedInAboutURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || aboutRe.MatchString(u) {
		return u
	}
	return strings.TrimRight(u, "/") + "/about"
}

// BuildEmail constructs first.last@domain in lower case. It returns "" when
// any part is missing.
func BuildEmail(first, last, domain string) string {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	domain = CleanDomain(domain)
	if first == "" || last == "" || domain == "" {
		return ""
	}
	return strings.ToLower(first + "." + last + "@" + domain)
}

// ZipDigits reduces a postal code to its first 4–6 digit run, the format the
// destination form accepts. Codes without such a run yield "".
func ZipDigits(zip string) string {
	return zipDigitsRe.FindString(zip)
}
