package audit

import (
	"sync"

	"github.com/relayline/governor/pkg/contracts"
)

// ViolationLog is a bounded, in-memory record of guardrail violations.
// When the capacity is reached the oldest entries are discarded.
type ViolationLog struct {
	mu      sync.Mutex
	entries []contracts.GuardrailViolation
	max     int
}

// NewViolationLog creates a log retaining at most max violations.
func NewViolationLog(max int) *ViolationLog {
	if max <= 0 {
		max = 1000
	}
	return &ViolationLog{max: max}
}

// RecordViolation appends v, evicting the oldest entry when full.
func (l *ViolationLog) RecordViolation(v contracts.GuardrailViolation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.max {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, v)
}

// All returns a copy of the retained violations, oldest first.
func (l *ViolationLog) All() []contracts.GuardrailViolation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]contracts.GuardrailViolation, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of retained violations.
func (l *ViolationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// DecisionHistory is a bounded ring of decision records. Appends never
// fail; readers get the most recent entries first.
type DecisionHistory struct {
	mu      sync.Mutex
	entries []contracts.DecisionRecord
	max     int
}

// NewDecisionHistory creates a history retaining at most max records.
func NewDecisionHistory(max int) *DecisionHistory {
	if max <= 0 {
		max = 1000
	}
	return &DecisionHistory{max: max}
}

// Append records r, evicting the oldest record when full.
func (h *DecisionHistory) Append(r contracts.DecisionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) >= h.max {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, r)
}

// Recent returns up to limit records, newest first. limit <= 0 returns
// everything retained.
func (h *DecisionHistory) Recent(limit int) []contracts.DecisionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]contracts.DecisionRecord, 0, n)
	for i := len(h.entries) - 1; i >= len(h.entries)-n; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

// Len reports the number of retained records.
func (h *DecisionHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
