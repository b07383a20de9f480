package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for case persistence and lifecycle.
var (
	ErrCaseNotFound      = errors.New("case not found")
	ErrStateCorrupted    = errors.New("persisted case state failed validation")
	ErrCaseTerminal      = errors.New("case is in a terminal state")
	ErrNoPendingApproval = errors.New("case has no pending approval")
)

// TurnRecord is one entry of the append-only transcript. Records are never
// mutated once appended.
type TurnRecord struct {
	Turn      int               `json:"turn"`
	AgentID   string            `json:"agent_id"`
	Kind      TurnKind          `json:"kind"`
	Text      string            `json:"text,omitempty"`
	Verdict   string            `json:"verdict,omitempty"`
	Request   *ToolRequest      `json:"request,omitempty"`
	Result    *ToolResult       `json:"result,omitempty"`
	Decision  *ApprovalDecision `json:"decision,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Transcript is the ordered history of turns for a case.
type Transcript []TurnRecord

// Last returns the most recent record, or nil for an empty transcript.
func (t Transcript) Last() *TurnRecord {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// LastMessage returns the most recent record carrying message text.
func (t Transcript) LastMessage() *TurnRecord {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Kind == TurnKindMessage || t[i].Kind == TurnKindDenied {
			return &t[i]
		}
	}
	return nil
}

// LastBy returns the most recent record produced by the given agent.
func (t Transcript) LastBy(agentID string) *TurnRecord {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].AgentID == agentID {
			return &t[i]
		}
	}
	return nil
}

// Mentions reports whether the latest message names the given agent, which
// the selector treats as an explicit handoff signal.
func (t Transcript) Mentions(agentID string) bool {
	last := t.LastMessage()
	if last == nil {
		return false
	}
	return strings.Contains(strings.ToLower(last.Text), strings.ToLower(agentID))
}

// Contribution is what an agent produced for one turn: a plain message, a
// tool request, or an approval decision.
type Contribution struct {
	Kind     ContributionKind  `json:"kind"`
	Text     string            `json:"text,omitempty"`
	Verdict  string            `json:"verdict,omitempty"`
	Request  *ToolRequest      `json:"request,omitempty"`
	Decision *ApprovalDecision `json:"decision,omitempty"`
}

// Case is the unit of work: one investigation session. It is owned
// exclusively by the orchestrator while running and persisted between runs.
type Case struct {
	CaseID          string                     `json:"case_id"`
	Query           string                     `json:"query"`
	Status          CaseStatus                 `json:"status"`
	SuspendReason   string                     `json:"suspend_reason,omitempty"`
	CompleteReason  string                     `json:"complete_reason,omitempty"`
	FailReason      string                     `json:"fail_reason,omitempty"`
	Turn            int                        `json:"turn"`
	Transcript      Transcript                 `json:"transcript"`
	PendingApproval *Approval                  `json:"pending_approval,omitempty"`
	QueuedDecision  *ApprovalDecision          `json:"queued_decision,omitempty"`
	AgentState      map[string]json.RawMessage `json:"agent_state,omitempty"`
	StallStreak     int                        `json:"stall_streak"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// Append adds a record to the transcript at the current turn index.
func (c *Case) Append(rec TurnRecord) {
	rec.Turn = c.Turn
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	c.Transcript = append(c.Transcript, rec)
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (c *Case) Clone() *Case {
	out := *c
	out.Transcript = make(Transcript, len(c.Transcript))
	copy(out.Transcript, c.Transcript)
	if c.PendingApproval != nil {
		ap := *c.PendingApproval
		out.PendingApproval = &ap
	}
	if c.QueuedDecision != nil {
		d := *c.QueuedDecision
		out.QueuedDecision = &d
	}
	if c.AgentState != nil {
		out.AgentState = make(map[string]json.RawMessage, len(c.AgentState))
		for k, v := range c.AgentState {
			out.AgentState[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &out
}

// Validate checks the structural invariants of a case. A persisted snapshot
// that fails validation must be rejected as corrupted, never repaired
// silently.
func (c *Case) Validate() error {
	if c.CaseID == "" {
		return fmt.Errorf("missing case id")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("unknown status %q", c.Status)
	}
	if c.Turn < 0 {
		return fmt.Errorf("negative turn counter %d", c.Turn)
	}
	prev := -1
	for i := range c.Transcript {
		rec := &c.Transcript[i]
		if rec.Turn < prev {
			return fmt.Errorf("transcript not ordered at index %d", i)
		}
		if rec.Turn > c.Turn {
			return fmt.Errorf("transcript record %d beyond turn counter", rec.Turn)
		}
		prev = rec.Turn
	}
	if c.PendingApproval != nil && c.PendingApproval.CaseID != c.CaseID {
		return fmt.Errorf("pending approval belongs to case %q", c.PendingApproval.CaseID)
	}
	return nil
}

// Snapshot serializes the full coordination state of a case.
func (c *Case) Snapshot() ([]byte, error) {
	return json.Marshal(c)
}

// CaseFromSnapshot restores and validates a persisted case snapshot.
func CaseFromSnapshot(blob []byte) (*Case, error) {
	var c Case
	if err := json.Unmarshal(blob, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupted, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupted, err)
	}
	return &c, nil
}
