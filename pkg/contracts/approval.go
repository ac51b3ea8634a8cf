package contracts

import "time"

// ApprovalStatus is the lifecycle state of a human approval ticket.
// Pending is the only non-terminal state; a request never re-enters it.
type ApprovalStatus string

// Approval status constants.
const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalDenied   ApprovalStatus = "DENIED"
	ApprovalTimeout  ApprovalStatus = "TIMEOUT"
)

// Terminal reports whether the status can no longer change.
func (s ApprovalStatus) Terminal() bool {
	return s != ApprovalPending
}

// ApprovalRequest is a time-bounded human-in-the-loop authorization ticket
// for a decision the policy pipeline would not self-approve.
type ApprovalRequest struct {
	ID           string         `json:"id"`
	Decision     *Decision      `json:"decision"` // reference, not copy
	RequestedAt  time.Time      `json:"requested_at"`
	TimeoutAt    time.Time      `json:"timeout_at"`
	Status       ApprovalStatus `json:"status"`
	Approver     string         `json:"approver,omitempty"`
	ResponseTime time.Duration  `json:"response_time,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}
