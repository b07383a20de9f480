package agent

import (
	"context"
	"fmt"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Planner reformulates the case goal and sets retrieval constraints. It acts
// once, at the start of a case.
type Planner struct {
	stateless
	topK int
}

// NewPlanner returns a planner with the given retrieval fan-out.
func NewPlanner(topK int) *Planner {
	if topK <= 0 {
		topK = 5
	}
	return &Planner{topK: topK}
}

func (p *Planner) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		ID:           domain.AgentPlanner,
		Capabilities: []string{domain.CapabilityPlans},
	}
}

// Eligible is true until the planner has spoken.
func (p *Planner) Eligible(cc *Context) bool {
	return cc.Transcript.LastBy(domain.AgentPlanner) == nil
}

// Act emits the plan. Retrieval constraints travel in the message text so the
// transcript stays the single source of truth for downstream participants.
func (p *Planner) Act(_ context.Context, cc *Context) (domain.Contribution, error) {
	text := fmt.Sprintf(
		"plan: gather corpus evidence for %q, then draft and verify findings; top_k=%d; handoff: retriever",
		cc.Query, p.topK,
	)
	return domain.Contribution{Kind: domain.ContributionMessage, Text: text}, nil
}
