package pipeline

import (
	"sync"

	"github.com/xconmik/buildata-automation/internal/model"
)

// AuditLog is the append-only record of lead outcomes. It may be read
// while a run appends.
type AuditLog struct {
	mu   sync.Mutex
	rows []model.LogRow
}

// Append adds row.
func (l *AuditLog) Append(row model.LogRow) {
	l.mu.Lock()
	l.rows = append(l.rows, row)
	l.mu.Unlock()
}

// Rows returns a copy of every row in append order.
func (l *AuditLog) Rows() []model.LogRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.LogRow(nil), l.rows...)
}

// Len returns the number of rows.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}
