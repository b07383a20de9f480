package agent

import (
	"context"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// HumanApproval carries a queued human decision into the transcript. It is
// the only participant permitted to clear a pending approval, and it acts
// only when a decision has actually arrived; a pending approval with no
// decision suspends the case instead.
type HumanApproval struct {
	stateless
}

// NewHumanApproval returns the human-approval participant.
func NewHumanApproval() *HumanApproval { return &HumanApproval{} }

func (h *HumanApproval) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		ID:           domain.AgentHuman,
		Capabilities: []string{domain.CapabilityApproves},
	}
}

// Eligible is true when the single open approval has a queued decision.
func (h *HumanApproval) Eligible(cc *Context) bool {
	return cc.PendingApproval.Open() && cc.QueuedDecision != nil &&
		cc.QueuedDecision.ApprovalID == cc.PendingApproval.ApprovalID
}

// Act resolves the open approval request with the queued decision.
func (h *HumanApproval) Act(_ context.Context, cc *Context) (domain.Contribution, error) {
	decision := *cc.QueuedDecision
	return domain.Contribution{
		Kind:     domain.ContributionApprovalDecision,
		Decision: &decision,
	}, nil
}
