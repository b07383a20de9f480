// Package agent defines the uniform participant contract and the built-in
// participants: planner, retriever, analyst, guard, and human approval.
//
// Participants are deterministic rule-based implementations; the transcript
// is their only shared state, so identical transcripts always produce
// identical contributions.
package agent

import (
	"context"
	"encoding/json"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Context is the read-only case view handed to a participant for one turn.
type Context struct {
	CaseID          string
	Query           string
	Transcript      domain.Transcript
	PendingApproval *domain.Approval
	QueuedDecision  *domain.ApprovalDecision
}

// Agent is the uniform contract every participant implements: given the
// running transcript and case context, produce a contribution or decline to
// act via Eligible.
type Agent interface {
	Descriptor() domain.AgentDescriptor
	Eligible(cc *Context) bool
	Act(ctx context.Context, cc *Context) (domain.Contribution, error)

	// Private agent state is persisted with the case, keyed by agent id.
	MarshalState() (json.RawMessage, error)
	RestoreState(state json.RawMessage) error
}

// stateless is embedded by participants without private state.
type stateless struct{}

func (stateless) MarshalState() (json.RawMessage, error) { return nil, nil }
func (stateless) RestoreState(json.RawMessage) error     { return nil }

// RestoreAll loads persisted per-agent state into a roster.
func RestoreAll(agents []Agent, state map[string]json.RawMessage) error {
	for _, a := range agents {
		blob, ok := state[a.Descriptor().ID]
		if !ok || len(blob) == 0 {
			continue
		}
		if err := a.RestoreState(blob); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotAll collects per-agent state for persistence.
func SnapshotAll(agents []Agent) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	for _, a := range agents {
		blob, err := a.MarshalState()
		if err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			out[a.Descriptor().ID] = blob
		}
	}
	return out, nil
}
