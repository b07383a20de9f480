package agent

import (
	"github.com/sentinelmcp/orchestrator/internal/adapter/index"
	"github.com/sentinelmcp/orchestrator/policy"
)

// NewRoster builds the closed participant set for one case run. The set is
// deliberately closed rather than plugin-extensible so the selector's
// tie-break order stays well-defined.
func NewRoster(embedder index.Embedder, idx index.Index, moderator policy.Moderator, topK int) []Agent {
	return []Agent{
		NewPlanner(topK),
		NewRetriever(embedder, idx),
		NewAnalyst(),
		NewGuard(moderator),
		NewHumanApproval(),
	}
}
