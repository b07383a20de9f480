package domain

import "encoding/json"

// Event is one append-only audit record: one per turn, tool dispatch, and
// approval transition.
type Event struct {
	EventID string          `json:"event_id"`
	CaseID  string          `json:"case_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
