// Package selector chooses the next acting participant each turn. Selection
// is a pure function of the transcript and the eligible candidate set; it
// performs no I/O and is queried fresh every turn.
package selector

import (
	"sort"

	"github.com/sentinelmcp/orchestrator/internal/agent"
	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Selector scores eligible candidates over transcript features and breaks
// ties by the static priority order, keeping the schedule deterministic for
// identical inputs. Determinism is required for replay and audit.
type Selector struct {
	weights config.SelectorWeights
}

// New returns a selector with the configured weights.
func New(weights config.SelectorWeights) *Selector {
	return &Selector{weights: weights}
}

// Select returns the next agent to act, or nil when no candidate is
// eligible. The orchestrator treats nil as a stall signal.
func (s *Selector) Select(cc *agent.Context, candidates []agent.Agent) agent.Agent {
	if len(candidates) == 0 {
		return nil
	}

	ordered := append([]agent.Agent(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return domain.AgentPriority(ordered[i].Descriptor().ID) < domain.AgentPriority(ordered[j].Descriptor().ID)
	})

	// An open approval pre-empts scoring: whichever candidate can decide it
	// acts next, no matter how the transcript scores the rest.
	if cc.PendingApproval.Open() {
		for _, candidate := range ordered {
			if candidate.Descriptor().Has(domain.CapabilityApproves) {
				return candidate
			}
		}
	}

	var best agent.Agent
	bestScore := -1.0
	for _, candidate := range ordered {
		score := s.score(cc, candidate)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}

func (s *Selector) score(cc *agent.Context, candidate agent.Agent) float64 {
	desc := candidate.Descriptor()
	score := s.weights.Base

	if cc.Transcript.Mentions(desc.ID) {
		score += s.weights.Handoff
	}
	if followsUp(cc.Transcript, desc.ID) {
		score += s.weights.FollowUp
	}
	return score
}

// followsUp encodes the natural phase progression of a case: plan, retrieve,
// draft, review, verify.
func followsUp(t domain.Transcript, candidateID string) bool {
	last := t.Last()
	if last == nil {
		return candidateID == domain.AgentPlanner
	}
	switch last.AgentID {
	case domain.AgentPlanner:
		return candidateID == domain.AgentRetrieve
	case domain.AgentRetrieve:
		return candidateID == domain.AgentAnalyst
	case domain.AgentAnalyst:
		if last.Kind == domain.TurnKindMessage {
			return candidateID == domain.AgentGuard
		}
		return candidateID == domain.AgentAnalyst
	case domain.AgentGuard, domain.AgentHuman:
		return candidateID == domain.AgentAnalyst
	}
	return false
}
