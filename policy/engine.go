// Package policy wraps the OPA rego engine used for moderation verdicts over
// agent drafts and tool requests.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision is a moderation verdict.
type Decision string

const (
	DecisionAllow    Decision = "allow"
	DecisionBlock    Decision = "block"
	DecisionEscalate Decision = "escalate"
)

// Moderator classifies content or tool requests into a moderation verdict
// with a reason code.
type Moderator interface {
	ClassifyContent(ctx context.Context, content string) (Decision, string, error)
	ClassifyTool(ctx context.Context, action string, params map[string]string) (Decision, string, error)
}

// Engine is the OPA-backed Moderator.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given rego policy. The policy must define
// data.casework.decision as an object {decision, reason}.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.casework.decision"),
		rego.Module("casework.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// ClassifyContent evaluates the policy against a draft message.
func (e *Engine) ClassifyContent(ctx context.Context, content string) (Decision, string, error) {
	return e.evaluate(ctx, map[string]interface{}{
		"kind":    "content",
		"content": content,
	})
}

// ClassifyTool evaluates the policy against a tool request.
func (e *Engine) ClassifyTool(ctx context.Context, action string, params map[string]string) (Decision, string, error) {
	input := map[string]interface{}{
		"kind":   "tool",
		"action": action,
	}
	paramsMap := map[string]interface{}{}
	for k, v := range params {
		paramsMap[k] = v
	}
	input["params"] = paramsMap
	return e.evaluate(ctx, input)
}

func (e *Engine) evaluate(ctx context.Context, input interface{}) (Decision, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "default", nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return "", "", fmt.Errorf("policy returned unexpected type %T", results[0].Expressions[0].Value)
	}

	decision, _ := obj["decision"].(string)
	reason, _ := obj["reason"].(string)
	switch Decision(decision) {
	case DecisionAllow, DecisionBlock, DecisionEscalate:
		return Decision(decision), reason, nil
	}
	return "", "", fmt.Errorf("policy returned unknown decision %q", decision)
}

// DefaultPolicy is the compiled-in moderation policy.
const DefaultPolicy = `
package casework

default decision := {"decision": "allow", "reason": "default"}

decision := {"decision": "block", "reason": "bulk export of records is forbidden"} if {
	input.kind == "tool"
	input.action == "records.export"
}

decision := {"decision": "escalate", "reason": "account mutations need review"} if {
	input.kind == "tool"
	startswith(input.action, "account.")
}

decision := {"decision": "block", "reason": "payout instruction without verification"} if {
	input.kind == "content"
	contains(lower(input.content), "send funds")
}
`
