package model

import "time"

// LogStatus is the outcome label written to the audit log for one lead.
type LogStatus string

const (
	LogSuccess          LogStatus = "SUCCESS"
	LogSkippedCompany   LogStatus = "SKIPPED_COMPANY"
	LogInvalidEmail     LogStatus = "INVALID_EMAIL"
	LogCompanyBlocked   LogStatus = "COMPANY_BLOCKED"
	LogHardInvalid      LogStatus = "HARD_INVALID"
	LogRetryNextContact LogStatus = "RETRY_NEXT_CONTACT"
	LogError            LogStatus = "ERROR"
)

// LogRow is one append-only audit entry.
type LogRow struct {
	Timestamp  time.Time `json:"timestamp"`
	Status     LogStatus `json:"status"`
	Company    string    `json:"company"`
	Domain     string    `json:"domain"`
	PersonName string    `json:"person_name"`
	Message    string    `json:"message"`
}
