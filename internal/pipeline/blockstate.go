package pipeline

import (
	"strings"
	"sync"
)

// BlockState is the invalid-email policy state of one company.
type BlockState struct {
	InvalidStreak int  `json:"invalid_streak"`
	Blocked       bool `json:"blocked"`
}

// BlockTable tracks BlockState per company for the life of the process.
// A blocked company stays blocked; there is no unblock.
type BlockTable struct {
	limit int

	mu     sync.Mutex
	states map[string]BlockState
}

// NewBlockTable returns a table that blocks a company after limit
// consecutive invalid outcomes. limit below 1 is treated as 1.
func NewBlockTable(limit int) *BlockTable {
	if limit < 1 {
		limit = 1
	}
	return &BlockTable{limit: limit, states: make(map[string]BlockState)}
}

func blockKey(company string) string {
	return strings.ToLower(strings.TrimSpace(company))
}

// Blocked reports whether company is blocked.
func (t *BlockTable) Blocked(company string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[blockKey(company)].Blocked
}

// Get returns the state of company.
func (t *BlockTable) Get(company string) BlockState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[blockKey(company)]
}

// RecordInvalid increments the streak and blocks the company once it
// reaches the limit. It returns the new state.
func (t *BlockTable) RecordInvalid(company string) BlockState {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := blockKey(company)
	s := t.states[k]
	s.InvalidStreak++
	if s.InvalidStreak >= t.limit {
		s.Blocked = true
	}
	t.states[k] = s
	return s
}

// Block blocks company immediately with its streak forced to the limit.
func (t *BlockTable) Block(company string) BlockState {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := blockKey(company)
	s := BlockState{InvalidStreak: t.limit, Blocked: true}
	t.states[k] = s
	return s
}

// ClearStreak resets the invalid streak. A blocked company stays blocked.
func (t *BlockTable) ClearStreak(company string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := blockKey(company)
	s, ok := t.states[k]
	if !ok {
		return
	}
	s.InvalidStreak = 0
	t.states[k] = s
}

// Snapshot copies the table.
func (t *BlockTable) Snapshot() map[string]BlockState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]BlockState, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}
