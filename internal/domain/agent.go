package domain

// Built-in participant identifiers.
const (
	AgentPlanner  = "planner"
	AgentRetrieve = "retriever"
	AgentAnalyst  = "analyst"
	AgentGuard    = "guard"
	AgentHuman    = "human_approval"
)

// Capability tags used on agent descriptors.
const (
	CapabilityPlans     = "plans"
	CapabilityRetrieves = "retrieves"
	CapabilityAnalyzes  = "analyzes"
	CapabilityCallsTool = "calls-tools"
	CapabilityGuards    = "guards"
	CapabilityApproves  = "approves"
)

// AgentDescriptor is static metadata for a participant.
type AgentDescriptor struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// Has reports whether the descriptor carries the given capability tag.
func (d AgentDescriptor) Has(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// agentPriority is the static tie-break order: lower value wins. The fixed
// order keeps the schedule deterministic for identical inputs, which replay
// and audit depend on.
var agentPriority = map[string]int{
	AgentPlanner:  0,
	AgentRetrieve: 1,
	AgentAnalyst:  2,
	AgentGuard:    3,
	AgentHuman:    4,
}

// AgentPriority returns the tie-break rank of an agent. Unknown agents sort
// last.
func AgentPriority(agentID string) int {
	if p, ok := agentPriority[agentID]; ok {
		return p
	}
	return len(agentPriority)
}
