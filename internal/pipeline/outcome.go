package pipeline

import (
	"regexp"
	"strings"
)

// Outcome is the policy signal read from the form's email check.
type Outcome string

const (
	OutcomeValid       Outcome = "valid"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeHardInvalid Outcome = "hard-invalid"
	OutcomeRetry       Outcome = "retry"
	OutcomeOther       Outcome = "other"
)

var (
	hardInvalidRe  = regexp.MustCompile(`(?i)\bhard[- ]?(invalid|bounce)`)
	negatedValidRe = regexp.MustCompile(`(?i)\b(not|isn't|un)[-\s]*(valid|verified|deliverable)\b`)
)

var (
	invalidMarkers = []string{"invalid", "please enter a valid", "undeliverable"}
	retryMarkers   = []string{"retry", "catch-all", "catch all", "unknown", "accept all", "risky"}
	validMarkers   = []string{"valid", "deliverable", "verified"}
)

// ClassifyEmailCheck maps the text shown after the email check onto an
// Outcome. Stronger signals are tested first, so "Hard Invalid" never reads
// as plain invalid and "Invalid" or "Not verified" never read as valid.
// Blank text is OutcomeOther.
func ClassifyEmailCheck(text string) Outcome {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return OutcomeOther
	case hardInvalidRe.MatchString(t):
		return OutcomeHardInvalid
	case negatedValidRe.MatchString(t), containsAny(t, invalidMarkers):
		return OutcomeInvalid
	case containsAny(t, retryMarkers):
		return OutcomeRetry
	case containsAny(t, validMarkers):
		return OutcomeValid
	default:
		return OutcomeOther
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
