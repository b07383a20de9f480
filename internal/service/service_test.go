package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/adapter/extract"
	"github.com/sentinelmcp/orchestrator/internal/adapter/index"
	"github.com/sentinelmcp/orchestrator/internal/adapter/provider"
	"github.com/sentinelmcp/orchestrator/internal/agent"
	"github.com/sentinelmcp/orchestrator/internal/config"
	"github.com/sentinelmcp/orchestrator/internal/domain"
	"github.com/sentinelmcp/orchestrator/internal/gate"
	"github.com/sentinelmcp/orchestrator/internal/orchestrator"
	"github.com/sentinelmcp/orchestrator/internal/repository"
	"github.com/sentinelmcp/orchestrator/internal/selector"
	"github.com/sentinelmcp/orchestrator/internal/termination"
	"github.com/sentinelmcp/orchestrator/policy"
)

type allowModerator struct{}

func (allowModerator) ClassifyContent(context.Context, string) (policy.Decision, string, error) {
	return policy.DecisionAllow, "default", nil
}

func (allowModerator) ClassifyTool(context.Context, string, map[string]string) (policy.Decision, string, error) {
	return policy.DecisionAllow, "default", nil
}

func newTestService(t *testing.T) (*Service, *repository.SQLiteStore) {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	policyCfg := config.DefaultPolicy()
	mod := allowModerator{}
	mock := provider.NewMock()
	g := gate.New(policyCfg, mod, mock, store, audit.Nop{}, time.Second)
	orch := orchestrator.New(store, g, selector.New(policyCfg.Selector), termination.New(policyCfg), audit.Nop{})
	pool := orchestrator.NewPool(4)

	emb := index.NewHashEmbedder()
	idx := index.NewMemory()
	svc := New(store, orch, pool, audit.Nop{}, policyCfg, extract.NewPlainText(), emb, idx, func() []agent.Agent {
		return agent.NewRoster(emb, idx, mod, 3)
	})
	t.Cleanup(func() {
		svc.Wait()
		store.Close()
	})
	return svc, store
}

func TestStartCaseRunsToCompletion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartCase(ctx, "verify identity of ACME sarl")
	if err != nil {
		t.Fatalf("StartCase failed: %v", err)
	}
	if !strings.HasPrefix(c.CaseID, "case_") {
		t.Fatalf("unexpected case id %q", c.CaseID)
	}

	svc.Wait()
	got, err := store.LoadCase(ctx, c.CaseID)
	if err != nil {
		t.Fatalf("LoadCase failed: %v", err)
	}
	if got.Status != domain.CaseStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.FailReason)
	}
}

func TestStartCaseRejectsEmptyQuery(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.StartCase(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestSubmitApprovalWithoutPending(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := &domain.Case{CaseID: "case_noap", Query: "q", Status: domain.CaseStatusRunning, CreatedAt: time.Now()}
	if err := store.SaveCase(ctx, c); err != nil {
		t.Fatalf("SaveCase failed: %v", err)
	}

	_, err := svc.SubmitApproval(ctx, "case_noap", domain.ApprovalDecision{Approve: true})
	if !errors.Is(err, domain.ErrNoPendingApproval) {
		t.Fatalf("expected ErrNoPendingApproval, got %v", err)
	}
}

func TestSubmitApprovalDrivesGatedCaseToCompletion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartCase(ctx, "freeze accounts of ACME sarl")
	if err != nil {
		t.Fatalf("StartCase failed: %v", err)
	}
	svc.Wait()

	suspended, err := store.LoadCase(ctx, c.CaseID)
	if err != nil {
		t.Fatalf("LoadCase failed: %v", err)
	}
	if suspended.Status != domain.CaseStatusSuspended || !suspended.PendingApproval.Open() {
		t.Fatalf("expected suspended case awaiting approval, got %+v", suspended)
	}

	if _, err := svc.SubmitApproval(ctx, c.CaseID, domain.ApprovalDecision{Approve: true, DecidedBy: "ops@example.com"}); err != nil {
		t.Fatalf("SubmitApproval failed: %v", err)
	}
	svc.Wait()

	final, err := store.LoadCase(ctx, c.CaseID)
	if err != nil {
		t.Fatalf("LoadCase failed: %v", err)
	}
	if final.Status != domain.CaseStatusCompleted {
		t.Fatalf("expected completed after approval, got %s (%s)", final.Status, final.FailReason)
	}
}

func TestCancelIdleCase(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := &domain.Case{CaseID: "case_idle", Query: "q", Status: domain.CaseStatusSuspended, SuspendReason: domain.SuspendReasonAwaitingApproval, CreatedAt: time.Now()}
	if err := store.SaveCase(ctx, c); err != nil {
		t.Fatalf("SaveCase failed: %v", err)
	}

	got, err := svc.CancelCase(ctx, "case_idle")
	if err != nil {
		t.Fatalf("CancelCase failed: %v", err)
	}
	if got.Status != domain.CaseStatusFailed || got.FailReason != domain.ReasonCancelled {
		t.Fatalf("expected failed/cancelled, got %s/%s", got.Status, got.FailReason)
	}

	if _, err := svc.CancelCase(ctx, "case_idle"); !errors.Is(err, domain.ErrCaseTerminal) {
		t.Fatalf("expected ErrCaseTerminal on second cancel, got %v", err)
	}
}

func TestResumeTerminalCaseRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := &domain.Case{CaseID: "case_done", Query: "q", Status: domain.CaseStatusCompleted, CompleteReason: domain.ReasonHandoff, CreatedAt: time.Now()}
	if err := store.SaveCase(ctx, c); err != nil {
		t.Fatalf("SaveCase failed: %v", err)
	}

	if _, err := svc.ResumeCase(ctx, "case_done"); !errors.Is(err, domain.ErrCaseTerminal) {
		t.Fatalf("expected ErrCaseTerminal, got %v", err)
	}
}

func TestIngestAndSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc := strings.Repeat("ACME sarl holds identity records and tax filings in the registry. ", 40)
	result, err := svc.IngestDocument(ctx, []byte(doc), "registry.txt")
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if result.Chunks < 2 {
		t.Fatalf("expected multiple chunks, got %d", result.Chunks)
	}
	if !strings.HasPrefix(result.DocID, "doc_") {
		t.Fatalf("unexpected doc id %q", result.DocID)
	}

	hits, err := svc.Search(ctx, "ACME identity records", 3, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected hits for an indexed document")
	}
	if hits[0].Chunk.Source != "registry.txt" {
		t.Fatalf("unexpected hit %+v", hits[0].Chunk)
	}
}

func TestSweeperExpiresStaleApproval(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	c := &domain.Case{
		CaseID:        "case_stale",
		Query:         "verify identity of ACME sarl",
		Status:        domain.CaseStatusSuspended,
		SuspendReason: domain.SuspendReasonAwaitingApproval,
		Turn:          4,
		PendingApproval: &domain.Approval{
			ApprovalID: "ap_stale",
			CaseID:     "case_stale",
			Request:    domain.ToolRequest{CaseID: "case_stale", Turn: 4, Action: "account.freeze"},
			Status:     domain.ApprovalStatusPending,
			CreatedAt:  time.Now().Add(-24 * time.Hour),
		},
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}
	if err := store.SaveCase(ctx, c); err != nil {
		t.Fatalf("SaveCase failed: %v", err)
	}

	svc.sweepExpiredApprovals(ctx)

	got, err := store.LoadCase(ctx, "case_stale")
	if err != nil {
		t.Fatalf("LoadCase failed: %v", err)
	}
	if got.Status != domain.CaseStatusSuspended || got.SuspendReason != domain.SuspendReasonApprovalExpired {
		t.Fatalf("expected suspended/approval_expired, got %s/%s", got.Status, got.SuspendReason)
	}
	if got.PendingApproval.Status != domain.ApprovalStatusExpired {
		t.Fatalf("approval must be expired, got %s", got.PendingApproval.Status)
	}

	// Resuming settles the expired approval as a failed verification and the
	// case still reaches a terminal state.
	if _, err := svc.ResumeCase(ctx, "case_stale"); err != nil {
		t.Fatalf("ResumeCase failed: %v", err)
	}
	svc.Wait()
	final, err := store.LoadCase(ctx, "case_stale")
	if err != nil {
		t.Fatalf("LoadCase failed: %v", err)
	}
	if final.Status != domain.CaseStatusCompleted && final.Status != domain.CaseStatusFailed {
		t.Fatalf("expected terminal state after resume, got %s", final.Status)
	}
	if final.PendingApproval != nil {
		t.Fatalf("expired approval must be cleared on settlement")
	}
}
