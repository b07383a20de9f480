// Package domain defines the core domain models for the case orchestrator.
package domain

// CaseStatus represents the lifecycle status of a case.
type CaseStatus string

const (
	CaseStatusRunning   CaseStatus = "running"
	CaseStatusSuspended CaseStatus = "suspended"
	CaseStatusCompleted CaseStatus = "completed"
	CaseStatusFailed    CaseStatus = "failed"
)

// Terminal reports whether no further turns are accepted for this status.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusFailed
}

// Valid reports whether the status is one of the known values.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusRunning, CaseStatusSuspended, CaseStatusCompleted, CaseStatusFailed:
		return true
	}
	return false
}

// TurnKind classifies a transcript record.
type TurnKind string

const (
	TurnKindMessage          TurnKind = "message"
	TurnKindToolCall         TurnKind = "tool_call"
	TurnKindApprovalDecision TurnKind = "approval_decision"
	TurnKindDenied           TurnKind = "denied"
	TurnKindError            TurnKind = "error"
)

// ContributionKind classifies what an agent produced for a turn.
type ContributionKind string

const (
	ContributionMessage          ContributionKind = "message"
	ContributionToolRequest      ContributionKind = "tool_request"
	ContributionApprovalDecision ContributionKind = "approval_decision"
)

// ApprovalStatus represents the resolution state of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDenied   ApprovalStatus = "denied"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// ToolStatus represents the outcome of a tool execution.
type ToolStatus string

const (
	ToolStatusSucceeded ToolStatus = "succeeded"
	ToolStatusFailed    ToolStatus = "failed"
)

// Guard verdicts over the latest draft or tool request.
const (
	VerdictAllow    = "allow"
	VerdictBlock    = "block"
	VerdictEscalate = "escalate"
)

// Suspend reasons recorded on a suspended case.
const (
	SuspendReasonAwaitingApproval = "awaiting_approval"
	SuspendReasonApprovalExpired  = "approval_expired"
)

// Termination and failure reasons.
const (
	ReasonHandoff   = "handoff"
	ReasonMaxTurns  = "max_turns"
	ReasonStalled   = "stalled"
	ReasonCancelled = "cancelled"
)

// EventType represents the type of an audit event.
type EventType string

const (
	EventTypeCaseStarted      EventType = "case_started"
	EventTypeCaseResumed      EventType = "case_resumed"
	EventTypeCaseSuspended    EventType = "case_suspended"
	EventTypeCaseCompleted    EventType = "case_completed"
	EventTypeCaseFailed       EventType = "case_failed"
	EventTypeCaseCancelled    EventType = "case_cancelled"
	EventTypeTurnCompleted    EventType = "turn_completed"
	EventTypePolicyDecision   EventType = "policy_decision"
	EventTypeToolDispatched   EventType = "tool_dispatched"
	EventTypeToolResult       EventType = "tool_result"
	EventTypeApprovalRequired EventType = "approval_required"
	EventTypeApprovalDecision EventType = "approval_decision"
	EventTypeApprovalExpired  EventType = "approval_expired"
	EventTypeDocumentIngested EventType = "document_ingested"
)
