package normalize

import (
	"strings"
)

func titleWords(title string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		words[w] = true
	}
	return words
}

// InferSeniority guesses a seniority label from a job title. It returns ""
// for a blank title.
func InferSeniority(title string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}
	w := titleWords(title)
	t := strings.ToLower(title)
	switch {
	case w["vp"] || w["svp"] || w["evp"] || strings.Contains(t, "vice president"):
		return "Vice President"
	case w["head"]:
		return "Head"
	case w["director"]:
		return "Director"
	case w["manager"]:
		return "Manager"
	default:
		return "Individual Contributor"
	}
}

// InferDepartment guesses a department from a job title, or "Other" when
// nothing matches. It returns "" for a blank title.
func InferDepartment(title string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}
	w := titleWords(title)
	t := strings.ToLower(title)
	switch {
	case w["it"] || strings.Contains(t, "information technology"):
		return "IT"
	case strings.Contains(t, "operation"):
		return "Operations"
	case strings.Contains(t, "engineering"):
		return "Engineering"
	case strings.Contains(t, "marketing"):
		return "Marketing"
	default:
		return "Other"
	}
}
