// Package gate executes tool requests on behalf of agents: whitelist check,
// moderation verdict, risk classification with human-approval escalation,
// then provider execution with bounded retries. All externally visible
// effects of a case pass through here.
package gate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/adapter/provider"
	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/domain"
	"github.com/sentinelmcp/orchestrator/policy"
)

// OutcomeKind is the dispatch result classification.
type OutcomeKind string

const (
	OutcomeExecuted         OutcomeKind = "executed"
	OutcomeAwaitingApproval OutcomeKind = "awaiting_approval"
	OutcomeDenied           OutcomeKind = "denied"
)

// Outcome is the result of one dispatch attempt.
type Outcome struct {
	Kind     OutcomeKind
	Result   *domain.ToolResult
	Approval *domain.Approval
	Reason   string
}

// Store persists committed tool results and open approvals keyed by
// (case id, turn index), so re-dispatch after a resume is idempotent and a
// re-entered escalation reuses the approval already on record instead of
// minting a duplicate.
type Store interface {
	GetToolResult(ctx context.Context, caseID string, turn int) (*domain.ToolResult, error)
	CommitToolResult(ctx context.Context, caseID string, turn int, result *domain.ToolResult) error
	GetOpenApproval(ctx context.Context, caseID string, turn int) (*domain.Approval, error)
}

// Gate is safe for concurrent use across cases; the policy tables it reads
// are process-wide, read-only configuration.
type Gate struct {
	policy          *config.Policy
	moderator       policy.Moderator
	provider        provider.Provider
	store           Store
	sink            audit.Sink
	providerTimeout time.Duration

	// sleep is a test seam for retry backoff.
	sleep func(time.Duration)
}

// New constructs a gate.
func New(policyCfg *config.Policy, moderator policy.Moderator, prov provider.Provider, store Store, sink audit.Sink, providerTimeout time.Duration) *Gate {
	return &Gate{
		policy:          policyCfg,
		moderator:       moderator,
		provider:        prov,
		store:           store,
		sink:            sink,
		providerTimeout: providerTimeout,
		sleep:           time.Sleep,
	}
}

// Dispatch runs the gate pipeline for one tool request. approved marks a
// request whose approval has already been granted; it skips the risk
// escalation but not the idempotency check.
func (g *Gate) Dispatch(ctx context.Context, req domain.ToolRequest, approved bool) (Outcome, error) {
	// A previously committed result wins unconditionally: after a resume the
	// provider must not be invoked a second time for the same turn.
	cached, err := g.store.GetToolResult(ctx, req.CaseID, req.Turn)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read committed result: %w", err)
	}
	if cached != nil {
		return Outcome{Kind: OutcomeExecuted, Result: cached}, nil
	}

	if !approved {
		if !g.policy.Whitelisted(req.Action) {
			g.emitPolicyDecision(req, "deny", domain.ErrCodeNotWhitelisted)
			return Outcome{Kind: OutcomeDenied, Reason: domain.ErrCodeNotWhitelisted}, nil
		}

		decision, reason, err := g.moderator.ClassifyTool(ctx, req.Action, req.Params)
		if err != nil {
			return Outcome{}, fmt.Errorf("moderation failed: %w", err)
		}
		if decision == policy.DecisionBlock {
			g.emitPolicyDecision(req, "deny", reason)
			return Outcome{Kind: OutcomeDenied, Reason: domain.ErrCodePolicy + ": " + reason}, nil
		}

		risk := g.policy.RiskLevel(req.Action)
		if decision == policy.DecisionEscalate || risk >= g.policy.RiskThreshold {
			// An approval already on record for this turn stays the single
			// open one; re-entry must not orphan it behind a fresh id.
			existing, err := g.store.GetOpenApproval(ctx, req.CaseID, req.Turn)
			if err != nil {
				return Outcome{}, fmt.Errorf("failed to read open approval: %w", err)
			}
			if existing != nil {
				existing.Request = req
				return Outcome{Kind: OutcomeAwaitingApproval, Approval: existing}, nil
			}

			approval := &domain.Approval{
				ApprovalID:    "ap_" + uuid.New().String()[:8],
				CaseID:        req.CaseID,
				Request:       req,
				Justification: fmt.Sprintf("action %s has risk level %d (threshold %d)", req.Action, risk, g.policy.RiskThreshold),
				Status:        domain.ApprovalStatusPending,
				CreatedAt:     time.Now(),
			}
			if decision == policy.DecisionEscalate {
				approval.Justification = fmt.Sprintf("moderation escalated action %s: %s", req.Action, reason)
			}
			g.emitPolicyDecision(req, "escalate", approval.Justification)
			return Outcome{Kind: OutcomeAwaitingApproval, Approval: approval}, nil
		}

		g.emitPolicyDecision(req, "allow", reason)
	}

	g.sink.Emit(audit.NewEvent(req.CaseID, domain.EventTypeToolDispatched, map[string]interface{}{
		"turn":   req.Turn,
		"action": req.Action,
	}))

	result := g.execute(ctx, req)

	// Commit before returning so a crash between execution and the transcript
	// append cannot cause a duplicate provider call on resume.
	if err := g.store.CommitToolResult(ctx, req.CaseID, req.Turn, result); err != nil {
		return Outcome{}, fmt.Errorf("failed to commit tool result: %w", err)
	}

	g.sink.Emit(audit.NewEvent(req.CaseID, domain.EventTypeToolResult, result))
	return Outcome{Kind: OutcomeExecuted, Result: result}, nil
}

// execute invokes the provider with bounded retries: exponential backoff with
// jitter for transient failures, immediate surface for permanent ones.
func (g *Gate) execute(ctx context.Context, req domain.ToolRequest) *domain.ToolResult {
	retry := g.policy.Retry
	backoff := time.Duration(retry.BaseBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxBackoffMs) * time.Millisecond

	var lastErr *domain.ToolError
	attempt := 0
	for attempt = 1; attempt <= retry.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.providerTimeout)
		payload, err := g.provider.Invoke(callCtx, req.Action, req.Params)
		cancel()

		if err == nil {
			return &domain.ToolResult{
				Action:      req.Action,
				Status:      domain.ToolStatusSucceeded,
				Payload:     payload,
				Attempts:    attempt,
				CompletedAt: time.Now(),
			}
		}

		lastErr = classifyProviderError(err)
		lastErr.Message = fmt.Sprintf("attempt %d: %s", attempt, lastErr.Message)
		if !lastErr.Transient || attempt == retry.MaxAttempts {
			break
		}

		g.sleep(backoff + jitter(retry.JitterMs))
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if attempt > retry.MaxAttempts {
		attempt = retry.MaxAttempts
	}
	return &domain.ToolResult{
		Action:      req.Action,
		Status:      domain.ToolStatusFailed,
		Error:       lastErr,
		Attempts:    attempt,
		CompletedAt: time.Now(),
	}
}

func classifyProviderError(err error) *domain.ToolError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ToolError{Code: domain.ErrCodeTimeout, Message: "provider call timed out", Transient: true}
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		code := domain.ErrCodeProviderError
		if perr.Code == "timeout" {
			code = domain.ErrCodeTimeout
		}
		if perr.Code == "circuit_open" {
			code = domain.ErrCodeCircuitOpen
		}
		return &domain.ToolError{Code: code, Message: perr.Message, Transient: perr.Transient}
	}
	return &domain.ToolError{Code: domain.ErrCodeProviderError, Message: err.Error()}
}

func jitter(maxMs int) time.Duration {
	if maxMs <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(maxMs))) * time.Millisecond
}

func (g *Gate) emitPolicyDecision(req domain.ToolRequest, decision, reason string) {
	g.sink.Emit(audit.NewEvent(req.CaseID, domain.EventTypePolicyDecision, map[string]interface{}{
		"turn":     req.Turn,
		"action":   req.Action,
		"decision": decision,
		"reason":   reason,
	}))
}
