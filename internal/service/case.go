package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// StartCase creates a new case for the query and schedules its first run.
func (s *Service) StartCase(ctx context.Context, query string) (*domain.Case, error) {
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	now := time.Now()
	c := &domain.Case{
		CaseID:    "case_" + uuid.New().String()[:8],
		Query:     query,
		Status:    domain.CaseStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}
	s.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeCaseStarted, map[string]string{"query": query}))

	s.schedule(c.CaseID)
	return c, nil
}

// ResumeCase re-schedules a suspended case. Resuming a running case is a
// no-op; resuming a terminal case returns ErrCaseTerminal.
func (s *Service) ResumeCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.store.LoadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return c, domain.ErrCaseTerminal
	}

	s.schedule(caseID)
	return c, nil
}

// SubmitApproval queues a decision for the case's single open approval and
// schedules a run to carry it onto the transcript. The decision is persisted
// before scheduling so a crash cannot lose it.
func (s *Service) SubmitApproval(ctx context.Context, caseID string, decision domain.ApprovalDecision) (*domain.Case, error) {
	c, err := s.store.LoadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, domain.ErrCaseTerminal
	}
	if !c.PendingApproval.Open() {
		return nil, domain.ErrNoPendingApproval
	}
	if decision.ApprovalID != "" && decision.ApprovalID != c.PendingApproval.ApprovalID {
		return nil, fmt.Errorf("approval %s is not open on case %s: %w", decision.ApprovalID, caseID, domain.ErrNoPendingApproval)
	}

	decision.ApprovalID = c.PendingApproval.ApprovalID
	c.QueuedDecision = &decision
	if err := s.store.SaveCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to queue approval decision: %w", err)
	}

	s.schedule(caseID)
	return c, nil
}

// CancelCase stops a case. An idle case is failed directly. An in-flight run
// is cancelled at its next turn boundary, so the snapshot returned for an
// active case may still read running until the run honors the cancellation
// and persists the terminal state.
func (s *Service) CancelCase(ctx context.Context, caseID string) (*domain.Case, error) {
	if s.pool.Cancel(caseID) {
		return s.store.LoadCase(ctx, caseID)
	}

	c, err := s.store.LoadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, domain.ErrCaseTerminal
	}

	c.Status = domain.CaseStatusFailed
	c.FailReason = domain.ReasonCancelled
	c.SuspendReason = ""
	if err := s.store.SaveCase(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to cancel case: %w", err)
	}
	s.sink.Emit(audit.NewEvent(caseID, domain.EventTypeCaseCancelled, nil))
	return c, nil
}

// GetCase returns the persisted state of a case.
func (s *Service) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	return s.store.LoadCase(ctx, caseID)
}

// GetCaseEvents returns the audit trail of a case, oldest first.
func (s *Service) GetCaseEvents(ctx context.Context, caseID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.store.ListEvents(ctx, caseID, limit)
}

// schedule hands the case to the run pool. A duplicate submit while a run is
// already in flight is benign: the active run will observe the persisted
// state changes at its next turn boundary.
func (s *Service) schedule(caseID string) {
	submitted := s.pool.Submit(caseID, func(ctx context.Context) {
		c, err := s.store.LoadCase(ctx, caseID)
		if err != nil {
			log.Printf("ERROR: failed to load case %s for run: %v", caseID, err)
			return
		}
		if err := s.orch.RunCase(ctx, c, s.newRoster()); err != nil {
			log.Printf("ERROR: run failed for case %s: %v", caseID, err)
		}
	})
	if !submitted {
		log.Printf("WARN: case %s already has an active run", caseID)
	}
}
