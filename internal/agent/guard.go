package agent

import (
	"context"
	"fmt"

	"github.com/sentinelmcp/orchestrator/internal/domain"
	"github.com/sentinelmcp/orchestrator/policy"
)

// Guard reviews the analyst's latest draft against the moderation policy and
// contributes an allow/block/escalate verdict.
type Guard struct {
	stateless
	moderator policy.Moderator
}

// NewGuard returns a guard over the given moderator.
func NewGuard(moderator policy.Moderator) *Guard {
	return &Guard{moderator: moderator}
}

func (g *Guard) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		ID:           domain.AgentGuard,
		Capabilities: []string{domain.CapabilityGuards},
	}
}

// Eligible is true exactly when the latest record is an unreviewed analyst
// draft.
func (g *Guard) Eligible(cc *Context) bool {
	last := cc.Transcript.Last()
	return last != nil && last.AgentID == domain.AgentAnalyst && last.Kind == domain.TurnKindMessage
}

// Act classifies the draft.
func (g *Guard) Act(ctx context.Context, cc *Context) (domain.Contribution, error) {
	draft := cc.Transcript.Last()
	decision, reason, err := g.moderator.ClassifyContent(ctx, draft.Text)
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("moderation failed: %w", err)
	}

	switch decision {
	case policy.DecisionAllow:
		return domain.Contribution{
			Kind:    domain.ContributionMessage,
			Verdict: domain.VerdictAllow,
			Text:    "verdict: allow; draft cleared, proceed to verification; handoff: analyst",
		}, nil
	case policy.DecisionEscalate:
		return domain.Contribution{
			Kind:    domain.ContributionMessage,
			Verdict: domain.VerdictEscalate,
			Text:    fmt.Sprintf("verdict: escalate; %s; revise the draft; handoff: analyst", reason),
		}, nil
	default:
		return domain.Contribution{
			Kind:    domain.ContributionMessage,
			Verdict: domain.VerdictBlock,
			Text:    fmt.Sprintf("verdict: block; %s; handoff: analyst", reason),
		}, nil
	}
}
