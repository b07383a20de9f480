package service

import (
	"context"
	"log"
	"time"

	"github.com/sentinelmcp/orchestrator/internal/adapter/audit"
	"github.com/sentinelmcp/orchestrator/internal/domain"
)

const sweepBatchSize = 50

// StartApprovalSweeper runs a background monitor that expires approvals whose
// wait budget ran out. It returns a stop function that blocks until the
// sweeper exits.
func (s *Service) StartApprovalSweeper(interval time.Duration) func() {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.sweepExpiredApprovals(context.Background())
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

// sweepExpiredApprovals marks timed-out pending approvals as expired. The
// case stays suspended; a later resume settles the expired approval as a
// denial-shaped failure on the transcript.
func (s *Service) sweepExpiredApprovals(ctx context.Context) {
	wait := s.policy.ApprovalWait()
	if wait <= 0 {
		return
	}
	cutoff := time.Now().Add(-wait)

	expired, err := s.store.ListExpiredApprovals(ctx, cutoff, sweepBatchSize)
	if err != nil {
		log.Printf("ERROR: approval sweep query failed: %v", err)
		return
	}

	for _, ap := range expired {
		// A case with an active run settles its own approval; touching its
		// state here would race the run loop.
		if s.pool.Active(ap.CaseID) {
			continue
		}
		if err := s.expireApproval(ctx, ap); err != nil {
			log.Printf("ERROR: failed to expire approval %s on case %s: %v", ap.ApprovalID, ap.CaseID, err)
		}
	}
}

func (s *Service) expireApproval(ctx context.Context, ap domain.Approval) error {
	c, err := s.store.LoadCase(ctx, ap.CaseID)
	if err != nil {
		return err
	}
	pending := c.PendingApproval
	if !pending.Open() || pending.ApprovalID != ap.ApprovalID || c.QueuedDecision != nil {
		return nil
	}

	now := time.Now()
	pending.Status = domain.ApprovalStatusExpired
	pending.DecidedAt = &now
	pending.Reason = "approval wait budget exceeded"
	c.SuspendReason = domain.SuspendReasonApprovalExpired
	if err := s.store.SaveCase(ctx, c); err != nil {
		return err
	}

	s.sink.Emit(audit.NewEvent(c.CaseID, domain.EventTypeApprovalExpired, pending))
	log.Printf("WARN: approval %s expired on case %s after %s", ap.ApprovalID, ap.CaseID, s.policy.ApprovalWait())
	return nil
}
