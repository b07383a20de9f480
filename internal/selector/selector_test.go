package selector

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sentinelmcp/orchestrator/internal/agent"
	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

type stub struct {
	id   string
	caps []string
}

func (s *stub) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{ID: s.id, Capabilities: s.caps}
}
func (s *stub) Eligible(*agent.Context) bool { return true }
func (s *stub) Act(context.Context, *agent.Context) (domain.Contribution, error) {
	return domain.Contribution{}, nil
}
func (s *stub) MarshalState() (json.RawMessage, error) { return nil, nil }
func (s *stub) RestoreState(json.RawMessage) error     { return nil }

func fullRoster() []agent.Agent {
	return []agent.Agent{
		&stub{id: domain.AgentPlanner},
		&stub{id: domain.AgentRetrieve},
		&stub{id: domain.AgentAnalyst},
		&stub{id: domain.AgentGuard},
		&stub{id: domain.AgentHuman, caps: []string{domain.CapabilityApproves}},
	}
}

func TestSelectNoCandidates(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	if got := sel.Select(&agent.Context{}, nil); got != nil {
		t.Fatalf("expected nil for empty candidate set, got %s", got.Descriptor().ID)
	}
}

func TestSelectFreshCasePicksPlanner(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	got := sel.Select(&agent.Context{}, fullRoster())
	if got == nil || got.Descriptor().ID != domain.AgentPlanner {
		t.Fatalf("expected planner on an empty transcript, got %+v", got)
	}
}

func TestSelectRetrieverAfterPlan(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	cc := &agent.Context{
		Transcript: domain.Transcript{
			{Turn: 0, AgentID: domain.AgentPlanner, Kind: domain.TurnKindMessage, Text: "need supplier KYC docs", CreatedAt: time.Now()},
		},
	}
	got := sel.Select(cc, fullRoster())
	if got == nil || got.Descriptor().ID != domain.AgentRetrieve {
		t.Fatalf("expected retriever after the plan, got %+v", got)
	}
}

func TestSelectFollowsHandoffMention(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	cc := &agent.Context{
		Transcript: domain.Transcript{
			{Turn: 0, AgentID: domain.AgentPlanner, Kind: domain.TurnKindMessage, Text: "plan; handoff: retriever", CreatedAt: time.Now()},
			{Turn: 1, AgentID: domain.AgentRetrieve, Kind: domain.TurnKindMessage, Text: "retrieved 3 passages; handoff: analyst", CreatedAt: time.Now()},
		},
	}
	got := sel.Select(cc, fullRoster())
	if got == nil || got.Descriptor().ID != domain.AgentAnalyst {
		t.Fatalf("expected analyst after retriever handoff, got %+v", got)
	}
}

func TestSelectPrefersApproverWhenApprovalOpen(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	cc := &agent.Context{
		Transcript: domain.Transcript{
			{Turn: 0, AgentID: domain.AgentAnalyst, Kind: domain.TurnKindMessage, Text: "draft; handoff: guard", CreatedAt: time.Now()},
		},
		PendingApproval: &domain.Approval{ApprovalID: "ap_1", Status: domain.ApprovalStatusPending},
	}
	got := sel.Select(cc, fullRoster())
	if got == nil || got.Descriptor().ID != domain.AgentHuman {
		t.Fatalf("expected human approver with an open approval, got %+v", got)
	}
}

func TestSelectApproverWinsOverScoredAnalyst(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	// A resumed gated case: the transcript mentions the analyst and the last
	// speaker hands back to it, so the analyst scores the maximum. The open
	// approval must still route the turn to the approver, or the analyst
	// would re-emit the gated request and the case would suspend again.
	cc := &agent.Context{
		Transcript: domain.Transcript{
			{Turn: 0, AgentID: domain.AgentAnalyst, Kind: domain.TurnKindMessage, Text: "draft answer; handoff: guard", CreatedAt: time.Now()},
			{Turn: 1, AgentID: domain.AgentGuard, Kind: domain.TurnKindMessage, Text: "verdict: allow; handoff: analyst", CreatedAt: time.Now()},
		},
		PendingApproval: &domain.Approval{ApprovalID: "ap_1", Status: domain.ApprovalStatusPending},
	}
	got := sel.Select(cc, fullRoster())
	if got == nil || got.Descriptor().ID != domain.AgentHuman {
		t.Fatalf("expected human approver to pre-empt the analyst, got %+v", got)
	}
}

func TestSelectTieBreaksByStaticPriority(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	// Guard and human score identically on an empty transcript; the static
	// order must pick guard every time.
	candidates := []agent.Agent{
		&stub{id: domain.AgentHuman},
		&stub{id: domain.AgentGuard},
	}
	for i := 0; i < 50; i++ {
		got := sel.Select(&agent.Context{}, candidates)
		if got == nil || got.Descriptor().ID != domain.AgentGuard {
			t.Fatalf("iteration %d: expected guard by priority tie-break, got %+v", i, got)
		}
	}
}

func TestSelectDeterministicForIdenticalInput(t *testing.T) {
	sel := New(config.DefaultPolicy().Selector)
	cc := &agent.Context{
		Transcript: domain.Transcript{
			{Turn: 0, AgentID: domain.AgentPlanner, Kind: domain.TurnKindMessage, Text: "plan; handoff: retriever", CreatedAt: time.Now()},
		},
	}
	first := sel.Select(cc, fullRoster())
	for i := 0; i < 50; i++ {
		if got := sel.Select(cc, fullRoster()); got.Descriptor().ID != first.Descriptor().ID {
			t.Fatalf("selection is not deterministic: %s then %s", first.Descriptor().ID, got.Descriptor().ID)
		}
	}
}
