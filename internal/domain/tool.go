package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToolRequest names a target action and its parameters. A request is uniquely
// keyed by (case id, turn index) so that re-dispatch after a resume is
// idempotent.
type ToolRequest struct {
	CaseID string            `json:"case_id"`
	Turn   int               `json:"turn"`
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

// Key returns the idempotency key for this request.
func (r ToolRequest) Key() string {
	return fmt.Sprintf("%s/%d", r.CaseID, r.Turn)
}

// ToolError is a typed tool or provider failure.
type ToolError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Transient bool   `json:"transient,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Tool error codes.
const (
	ErrCodeNotWhitelisted  = "not_whitelisted"
	ErrCodePolicy          = "policy"
	ErrCodeProviderError   = "provider_error"
	ErrCodeTimeout         = "timeout"
	ErrCodeCircuitOpen     = "circuit_open"
	ErrCodeApprovalDenied  = "approval_denied"
	ErrCodeApprovalExpired = "approval_expired"
)

// ToolResult carries either a success payload or a typed failure.
type ToolResult struct {
	Action      string          `json:"action"`
	Status      ToolStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       *ToolError      `json:"error,omitempty"`
	Attempts    int             `json:"attempts,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Succeeded reports whether the execution produced a success payload.
func (r *ToolResult) Succeeded() bool {
	return r != nil && r.Status == ToolStatusSucceeded
}
