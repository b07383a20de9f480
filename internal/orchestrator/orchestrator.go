// Package orchestrator drives the turn loop of a case: select the next
// participant, route its contribution through the policy gate, evaluate
// termination, and persist state at every turn boundary. Within one case
// turns are strictly sequential; across cases the orchestrator is fully
// parallel.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/agent"
	"github.com/sentinelmcp/orchestrator/internal/domain"
	"github.com/sentinelmcp/orchestrator/internal/gate"
	"github.com/sentinelmcp/orchestrator/internal/repository"
	"github.com/sentinelmcp/orchestrator/internal/selector"
	"github.com/sentinelmcp/orchestrator/internal/termination"
)

// Orchestrator composes the selector, the gate, and the termination
// evaluator over a persistent store.
type Orchestrator struct {
	store     repository.Store
	gate      *gate.Gate
	selector  *selector.Selector
	evaluator *termination.Evaluator
	sink      audit.Sink
}

// New constructs an orchestrator. The audit sink is injected here; there is
// no hidden global.
func New(store repository.Store, g *gate.Gate, sel *selector.Selector, eval *termination.Evaluator, sink audit.Sink) *Orchestrator {
	return &Orchestrator{store: store, gate: g, selector: sel, evaluator: eval, sink: sink}
}

// RunCase drives the loop until the case suspends or reaches a terminal
// state. Every exit from a turn is a recorded state transition; failures in
// agents or dispatch are caught at the turn boundary, never raised past it.
func (o *Orchestrator) RunCase(ctx context.Context, c *domain.Case, agents []agent.Agent) error {
	if c.Status.Terminal() {
		return domain.ErrCaseTerminal
	}
	if err := agent.RestoreAll(agents, c.AgentState); err != nil {
		return fmt.Errorf("failed to restore agent state: %w", err)
	}
	if c.Status == domain.CaseStatusSuspended {
		c.Status = domain.CaseStatusRunning
		c.SuspendReason = ""
		o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeCaseResumed, nil))
	}

	for {
		// Cancellation is honored between turns only, never mid-execution.
		select {
		case <-ctx.Done():
			c.Status = domain.CaseStatusFailed
			c.FailReason = domain.ReasonCancelled
			o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeCaseCancelled, nil))
			return o.persist(ctx, c, agents)
		default:
		}

		if ap := c.PendingApproval; ap != nil && !ap.Open() {
			// A resolved (or expired) approval settles the gated request
			// before any new turn is scheduled.
			o.settleApproval(ctx, c)
		} else if ap.Open() && !decisionQueued(c) {
			return o.suspend(ctx, c, agents, domain.SuspendReasonAwaitingApproval)
		} else {
			cc := caseContext(c)
			eligible := make([]agent.Agent, 0, len(agents))
			for _, a := range agents {
				if a.Eligible(cc) {
					eligible = append(eligible, a)
				}
			}

			chosen := o.selector.Select(cc, eligible)
			if chosen == nil {
				c.StallStreak++
			} else {
				c.StallStreak = 0
				if awaiting := o.executeTurn(ctx, c, chosen, cc); awaiting {
					return o.suspend(ctx, c, agents, domain.SuspendReasonAwaitingApproval)
				}
			}
		}

		verdict := o.evaluator.Evaluate(c)
		switch verdict.Kind {
		case domain.VerdictComplete:
			c.Status = domain.CaseStatusCompleted
			c.CompleteReason = verdict.Reason
			o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeCaseCompleted, verdict))
		case domain.VerdictFailed:
			c.Status = domain.CaseStatusFailed
			c.FailReason = verdict.Reason
			o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeCaseFailed, verdict))
		}

		if err := o.persist(ctx, c, agents); err != nil {
			return err
		}
		o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeTurnCompleted, map[string]interface{}{
			"turn":   c.Turn,
			"status": c.Status,
		}))

		if c.Status.Terminal() {
			return nil
		}
	}
}

// executeTurn invokes the chosen agent and routes its contribution. Returns
// true when the case must suspend awaiting approval; in that path the turn
// counter is not incremented.
func (o *Orchestrator) executeTurn(ctx context.Context, c *domain.Case, chosen agent.Agent, cc *agent.Context) bool {
	agentID := chosen.Descriptor().ID

	contrib, err := chosen.Act(ctx, cc)
	if err != nil {
		log.Printf("WARN: agent %s failed on case %s: %v", agentID, c.CaseID, err)
		c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindError, Text: err.Error()})
		c.Turn++
		return false
	}

	switch contrib.Kind {
	case domain.ContributionMessage:
		kind := domain.TurnKindMessage
		if contrib.Verdict == domain.VerdictBlock {
			kind = domain.TurnKindDenied
		}
		c.Append(domain.TurnRecord{AgentID: agentID, Kind: kind, Text: contrib.Text, Verdict: contrib.Verdict})
		c.Turn++

	case domain.ContributionToolRequest:
		req := *contrib.Request
		req.CaseID = c.CaseID
		req.Turn = c.Turn

		outcome, err := o.gate.Dispatch(ctx, req, false)
		if err != nil {
			log.Printf("WARN: dispatch failed on case %s turn %d: %v", c.CaseID, c.Turn, err)
			c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindError, Request: &req, Text: err.Error()})
			c.Turn++
			return false
		}
		switch outcome.Kind {
		case gate.OutcomeExecuted:
			c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindToolCall, Request: &req, Result: outcome.Result})
			c.Turn++
		case gate.OutcomeDenied:
			c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindDenied, Request: &req, Text: outcome.Reason})
			c.Turn++
		case gate.OutcomeAwaitingApproval:
			outcome.Approval.RequestedBy = agentID
			c.PendingApproval = outcome.Approval
			o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeApprovalRequired, outcome.Approval))
			return true
		}

	case domain.ContributionApprovalDecision:
		o.resolveApproval(c, agentID, contrib.Decision)
	}
	return false
}

// resolveApproval applies the human decision to the single open approval and
// records it as a turn.
func (o *Orchestrator) resolveApproval(c *domain.Case, agentID string, decision *domain.ApprovalDecision) {
	ap := c.PendingApproval
	if ap == nil || ap.ApprovalID != decision.ApprovalID {
		c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindError, Text: "approval decision does not match the open approval"})
		c.Turn++
		return
	}

	now := time.Now()
	if decision.Approve {
		ap.Status = domain.ApprovalStatusApproved
	} else {
		ap.Status = domain.ApprovalStatusDenied
	}
	ap.DecidedAt = &now
	ap.DecidedBy = decision.DecidedBy
	ap.Reason = decision.Reason
	c.QueuedDecision = nil

	c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindApprovalDecision, Decision: decision})
	c.Turn++
	o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeApprovalDecision, ap))
}

// settleApproval finishes the gated tool request once its approval resolved:
// approved requests execute exactly once (idempotent re-dispatch), denied and
// expired ones surface a typed failure on the transcript.
func (o *Orchestrator) settleApproval(ctx context.Context, c *domain.Case) {
	ap := c.PendingApproval
	req := ap.Request
	agentID := ap.RequestedBy
	if agentID == "" {
		agentID = domain.AgentAnalyst
	}

	switch ap.Status {
	case domain.ApprovalStatusApproved:
		outcome, err := o.gate.Dispatch(ctx, req, true)
		if err != nil {
			log.Printf("WARN: approved dispatch failed on case %s turn %d: %v", c.CaseID, req.Turn, err)
			c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindError, Request: &req, Text: err.Error()})
			c.Turn++
			return
		}
		c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindToolCall, Request: &req, Result: outcome.Result})
		c.Turn++

	case domain.ApprovalStatusDenied:
		result := &domain.ToolResult{
			Action:      req.Action,
			Status:      domain.ToolStatusFailed,
			Error:       &domain.ToolError{Code: domain.ErrCodeApprovalDenied, Message: ap.Reason},
			CompletedAt: time.Now(),
		}
		c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindDenied, Request: &req, Result: result})
		c.Turn++

	case domain.ApprovalStatusExpired:
		result := &domain.ToolResult{
			Action:      req.Action,
			Status:      domain.ToolStatusFailed,
			Error:       &domain.ToolError{Code: domain.ErrCodeApprovalExpired, Message: "approval wait budget exceeded"},
			CompletedAt: time.Now(),
		}
		c.Append(domain.TurnRecord{AgentID: agentID, Kind: domain.TurnKindDenied, Request: &req, Result: result})
		c.Turn++
	}

	c.PendingApproval = nil
}

func (o *Orchestrator) suspend(ctx context.Context, c *domain.Case, agents []agent.Agent, reason string) error {
	c.Status = domain.CaseStatusSuspended
	c.SuspendReason = reason
	o.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeCaseSuspended, map[string]string{"reason": reason}))
	return o.persist(ctx, c, agents)
}

// persist snapshots per-agent private state into the case and saves it. The
// save context is detached from the run context so a cancellation cannot
// lose the final state transition.
func (o *Orchestrator) persist(ctx context.Context, c *domain.Case, agents []agent.Agent) error {
	state, err := agent.SnapshotAll(agents)
	if err != nil {
		return fmt.Errorf("failed to snapshot agent state: %w", err)
	}
	c.AgentState = state

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.SaveCase(saveCtx, c); err != nil {
		return fmt.Errorf("failed to persist case %s: %w", c.CaseID, err)
	}
	return nil
}

func decisionQueued(c *domain.Case) bool {
	return c.QueuedDecision != nil && c.PendingApproval != nil &&
		c.QueuedDecision.ApprovalID == c.PendingApproval.ApprovalID
}

func caseContext(c *domain.Case) *agent.Context {
	return &agent.Context{
		CaseID:          c.CaseID,
		Query:           c.Query,
		Transcript:      c.Transcript,
		PendingApproval: c.PendingApproval,
		QueuedDecision:  c.QueuedDecision,
	}
}
