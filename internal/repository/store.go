// Package repository persists case state. The snapshot blob is the source of
// truth for restore; turn records, approvals, and events are also written to
// their own tables for audit queries.
package repository

import (
	"context"
	"time"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// Store is the state persistence contract of the orchestrator.
type Store interface {
	// SaveCase persists the full coordination state of a case. Writes for the
	// same case id are serialized; different cases persist independently.
	SaveCase(ctx context.Context, c *domain.Case) error

	// LoadCase restores a case snapshot. Returns domain.ErrCaseNotFound when
	// absent and domain.ErrStateCorrupted when the blob fails validation.
	LoadCase(ctx context.Context, caseID string) (*domain.Case, error)

	// Committed tool results keyed by (case id, turn index) for idempotent
	// re-dispatch.
	CommitToolResult(ctx context.Context, caseID string, turn int, result *domain.ToolResult) error
	GetToolResult(ctx context.Context, caseID string, turn int) (*domain.ToolResult, error)

	// GetOpenApproval returns the pending approval recorded for
	// (case id, turn index), or nil when none is open.
	GetOpenApproval(ctx context.Context, caseID string, turn int) (*domain.Approval, error)

	// ListExpiredApprovals returns pending approvals created before the cutoff.
	ListExpiredApprovals(ctx context.Context, cutoff time.Time, limit int) ([]domain.Approval, error)

	// Audit events.
	AppendEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, caseID string, limit int) ([]domain.Event, error)

	Close() error
}
