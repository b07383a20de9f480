// Package termination decides, after every turn, whether a case continues,
// completes, or fails. The verdict is derived fresh from the case each time
// and never persisted.
package termination

import (
	"strings"

	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Evaluator applies the termination rules in order: handoff phrase, turn
// budget, stall detection.
type Evaluator struct {
	maxTurns int
	phrases  []string
}

// New returns an evaluator configured from the process policy.
func New(policy *config.Policy) *Evaluator {
	phrases := make([]string, 0, len(policy.TerminationPhrases))
	for _, p := range policy.TerminationPhrases {
		phrases = append(phrases, strings.ToLower(p))
	}
	return &Evaluator{maxTurns: policy.MaxTurns, phrases: phrases}
}

// Evaluate is pure over the case state; it reads nothing external.
func (e *Evaluator) Evaluate(c *domain.Case) domain.Verdict {
	if last := c.Transcript.LastMessage(); last != nil && last.Kind == domain.TurnKindMessage {
		text := strings.ToLower(last.Text)
		for _, phrase := range e.phrases {
			if strings.Contains(text, phrase) {
				return domain.Complete(domain.ReasonHandoff)
			}
		}
	}

	if c.Turn >= e.maxTurns {
		return domain.Complete(domain.ReasonMaxTurns)
	}

	// Two consecutive turns with no eligible agent is a stall.
	if c.StallStreak >= 2 {
		return domain.Failed(domain.ReasonStalled)
	}

	return domain.Continue()
}
