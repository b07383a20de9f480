package domain

// VerdictKind is the termination evaluator's decision for a turn.
type VerdictKind string

const (
	VerdictContinue VerdictKind = "continue"
	VerdictComplete VerdictKind = "complete"
	VerdictFailed   VerdictKind = "failed"
)

// Verdict is derived fresh from the transcript every turn and never
// persisted; recomputing it is cheap and avoids a second source of truth.
type Verdict struct {
	Kind   VerdictKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

// Continue signals the loop to keep scheduling turns.
func Continue() Verdict { return Verdict{Kind: VerdictContinue} }

// Complete marks the case finished for the given reason.
func Complete(reason string) Verdict { return Verdict{Kind: VerdictComplete, Reason: reason} }

// Failed marks the case failed for the given reason.
func Failed(reason string) Verdict { return Verdict{Kind: VerdictFailed, Reason: reason} }
