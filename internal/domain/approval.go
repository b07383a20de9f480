package domain

import "time"

// Approval is a human-approval request created when the policy gate
// classifies an action as high-risk. At most one open approval exists per
// case; the case cannot advance past the gated turn until it resolves.
type Approval struct {
	ApprovalID    string         `json:"approval_id"`
	CaseID        string         `json:"case_id"`
	RequestedBy   string         `json:"requested_by,omitempty"`
	Request       ToolRequest    `json:"request"`
	Justification string         `json:"justification"`
	Status        ApprovalStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	DecidedAt     *time.Time     `json:"decided_at,omitempty"`
	DecidedBy     string         `json:"decided_by,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

// Open reports whether the approval still blocks the case.
func (a *Approval) Open() bool {
	return a != nil && a.Status == ApprovalStatusPending
}

// ApprovalDecision resolves the single open approval request of a case. It is
// queued by the request layer and carried into the transcript by the
// human-approval participant.
type ApprovalDecision struct {
	ApprovalID string `json:"approval_id"`
	Approve    bool   `json:"approve"`
	DecidedBy  string `json:"decided_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
