package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// TerminationMarker is the handoff phrase the analyst puts in its final
// message. The termination evaluator is configured with the same phrase.
const TerminationMarker = "FINDINGS COMPLETE"

// Analyst composes draft answers over retrieved evidence and requests
// external verification before finalizing.
type Analyst struct {
	state analystState
}

type analystState struct {
	Revisions int `json:"revisions,omitempty"`
}

// NewAnalyst returns an analyst.
func NewAnalyst() *Analyst { return &Analyst{} }

func (a *Analyst) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		ID:           domain.AgentAnalyst,
		Capabilities: []string{domain.CapabilityAnalyzes, domain.CapabilityCallsTool},
	}
}

// Eligible is true once retrieval happened and the analyst is not itself
// waiting on a guard review of its latest draft.
func (a *Analyst) Eligible(cc *Context) bool {
	if cc.Transcript.LastBy(domain.AgentRetrieve) == nil {
		return false
	}
	last := cc.Transcript.Last()
	if last == nil {
		return false
	}
	// A draft awaiting guard review blocks further analyst turns.
	if last.AgentID == domain.AgentAnalyst && last.Kind == domain.TurnKindMessage {
		return false
	}
	return true
}

// Act advances the draft → review → verify → finalize progression, reading
// the current phase off the transcript.
func (a *Analyst) Act(_ context.Context, cc *Context) (domain.Contribution, error) {
	t := cc.Transcript
	last := t.Last()

	// A settled verification attempt, successful or not, means the case can
	// be finalized.
	if last != nil && last.AgentID == domain.AgentAnalyst &&
		(last.Kind == domain.TurnKindToolCall || last.Kind == domain.TurnKindDenied) {
		return a.finalize(cc, last.Result), nil
	}

	guardRec := t.LastBy(domain.AgentGuard)
	draft := a.lastDraft(t)

	if draft != nil && guardRec != nil && guardRec.Turn > draft.Turn {
		switch guardRec.Verdict {
		case domain.VerdictAllow:
			return a.requestVerification(cc), nil
		default:
			// Blocked or escalated: revise the draft.
			a.state.Revisions++
			text := fmt.Sprintf(
				"draft answer (revision %d): findings for %q restated without the flagged content, citing retrieved passages only; handoff: guard",
				a.state.Revisions, cc.Query,
			)
			return domain.Contribution{Kind: domain.ContributionMessage, Text: text}, nil
		}
	}

	text := fmt.Sprintf(
		"draft answer: based on the retrieved passages, preliminary findings for %q are assembled with citations; handoff: guard",
		cc.Query,
	)
	return domain.Contribution{Kind: domain.ContributionMessage, Text: text}, nil
}

func (a *Analyst) lastDraft(t domain.Transcript) *domain.TurnRecord {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].AgentID == domain.AgentAnalyst && t[i].Kind == domain.TurnKindMessage {
			return &t[i]
		}
	}
	return nil
}

func (a *Analyst) requestVerification(cc *Context) domain.Contribution {
	return domain.Contribution{
		Kind: domain.ContributionToolRequest,
		Request: &domain.ToolRequest{
			Action: verificationAction(cc.Query),
			Params: map[string]string{"subject": cc.Query},
		},
	}
}

func (a *Analyst) finalize(cc *Context, result *domain.ToolResult) domain.Contribution {
	var text string
	switch {
	case result.Succeeded():
		text = fmt.Sprintf(
			"final answer for %q: findings verified externally (%s). %s",
			cc.Query, result.Action, TerminationMarker,
		)
	case result != nil && result.Error != nil:
		text = fmt.Sprintf(
			"final answer for %q: findings stand on corpus evidence alone; external verification unavailable (%s). %s",
			cc.Query, result.Error.Code, TerminationMarker,
		)
	default:
		text = fmt.Sprintf(
			"final answer for %q: findings stand on corpus evidence alone; verification was denied by policy. %s",
			cc.Query, TerminationMarker,
		)
	}
	return domain.Contribution{Kind: domain.ContributionMessage, Text: text}
}

// verificationAction maps the case subject to a whitelisted provider action.
func verificationAction(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "tax"):
		return "tax.lookup"
	case strings.Contains(q, "sanction"):
		return "sanctions.screen"
	case strings.Contains(q, "freeze"):
		return "account.freeze"
	default:
		return "identity.verify"
	}
}

func (a *Analyst) MarshalState() (json.RawMessage, error) {
	if a.state == (analystState{}) {
		return nil, nil
	}
	return json.Marshal(a.state)
}

func (a *Analyst) RestoreState(state json.RawMessage) error {
	return json.Unmarshal(state, &a.state)
}
