package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sentinelmcp/orchestrator/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// Serializes persists per case id: at most one in-flight save per case.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across
	// goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			case_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			turn INTEGER NOT NULL,
			suspend_reason TEXT,
			snapshot TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS turn_records (
			case_id TEXT NOT NULL,
			turn_idx INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			record TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (case_id, seq),
			FOREIGN KEY (case_id) REFERENCES cases(case_id)
		)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL,
			turn_idx INTEGER NOT NULL,
			status TEXT NOT NULL,
			justification TEXT,
			created_at DATETIME NOT NULL,
			decided_at DATETIME,
			decided_by TEXT,
			reason TEXT,
			FOREIGN KEY (case_id) REFERENCES cases(case_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS tool_results (
			case_id TEXT NOT NULL,
			turn_idx INTEGER NOT NULL,
			result TEXT NOT NULL,
			committed_at DATETIME NOT NULL,
			PRIMARY KEY (case_id, turn_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			case_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_case ON events(case_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) caseLock(caseID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[caseID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[caseID] = lock
	}
	return lock
}

// SaveCase persists the case snapshot plus its transcript, approval, and
// status rows in one transaction.
func (s *SQLiteStore) SaveCase(ctx context.Context, c *domain.Case) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid case: %w", err)
	}

	lock := s.caseLock(c.CaseID)
	lock.Lock()
	defer lock.Unlock()

	c.UpdatedAt = time.Now()
	snapshot, err := c.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to serialize case: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (case_id, status, turn, suspend_reason, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			status = excluded.status,
			turn = excluded.turn,
			suspend_reason = excluded.suspend_reason,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		c.CaseID, string(c.Status), c.Turn, c.SuspendReason, string(snapshot), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert case: %w", err)
	}

	for seq, rec := range c.Transcript {
		blob, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to serialize turn record: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO turn_records (case_id, turn_idx, seq, agent_id, kind, record, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.CaseID, rec.Turn, seq, rec.AgentID, string(rec.Kind), string(blob), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert turn record: %w", err)
		}
	}

	if ap := c.PendingApproval; ap != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO approvals (approval_id, case_id, turn_idx, status, justification, created_at, decided_at, decided_by, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(approval_id) DO UPDATE SET
				status = excluded.status,
				decided_at = excluded.decided_at,
				decided_by = excluded.decided_by,
				reason = excluded.reason`,
			ap.ApprovalID, ap.CaseID, ap.Request.Turn, string(ap.Status), ap.Justification,
			ap.CreatedAt, ap.DecidedAt, ap.DecidedBy, ap.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert approval: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// LoadCase restores and validates a case snapshot.
func (s *SQLiteStore) LoadCase(ctx context.Context, caseID string) (*domain.Case, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM cases WHERE case_id = ?`, caseID,
	).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, domain.ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	return domain.CaseFromSnapshot([]byte(snapshot))
}

// CommitToolResult records an executed result; the first commit for a turn
// wins so re-dispatch after a resume cannot overwrite it.
func (s *SQLiteStore) CommitToolResult(ctx context.Context, caseID string, turn int, result *domain.ToolResult) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize tool result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tool_results (case_id, turn_idx, result, committed_at)
		VALUES (?, ?, ?, ?)`,
		caseID, turn, string(blob), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to commit tool result: %w", err)
	}
	return nil
}

// GetToolResult returns the committed result for (case id, turn), or nil.
func (s *SQLiteStore) GetToolResult(ctx context.Context, caseID string, turn int) (*domain.ToolResult, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM tool_results WHERE case_id = ? AND turn_idx = ?`, caseID, turn,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tool result: %w", err)
	}
	var result domain.ToolResult
	if err := json.Unmarshal([]byte(blob), &result); err != nil {
		return nil, fmt.Errorf("%w: bad tool result blob: %v", domain.ErrStateCorrupted, err)
	}
	return &result, nil
}

// GetOpenApproval returns the pending approval for (case id, turn), or nil.
func (s *SQLiteStore) GetOpenApproval(ctx context.Context, caseID string, turn int) (*domain.Approval, error) {
	var ap domain.Approval
	err := s.db.QueryRowContext(ctx, `
		SELECT approval_id, case_id, status, justification, created_at
		FROM approvals
		WHERE case_id = ? AND turn_idx = ? AND status = ?
		ORDER BY created_at
		LIMIT 1`,
		caseID, turn, string(domain.ApprovalStatusPending),
	).Scan(&ap.ApprovalID, &ap.CaseID, &ap.Status, &ap.Justification, &ap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load open approval: %w", err)
	}
	ap.Request.CaseID = caseID
	ap.Request.Turn = turn
	return &ap, nil
}

// ListExpiredApprovals returns pending approvals created before the cutoff.
func (s *SQLiteStore) ListExpiredApprovals(ctx context.Context, cutoff time.Time, limit int) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT approval_id, case_id, turn_idx, status, justification, created_at
		FROM approvals
		WHERE status = ? AND created_at < ?
		ORDER BY created_at
		LIMIT ?`,
		string(domain.ApprovalStatusPending), cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired approvals: %w", err)
	}
	defer rows.Close()

	var approvals []domain.Approval
	for rows.Next() {
		var ap domain.Approval
		var turn int
		if err := rows.Scan(&ap.ApprovalID, &ap.CaseID, &turn, &ap.Status, &ap.Justification, &ap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		ap.Request.CaseID = ap.CaseID
		ap.Request.Turn = turn
		approvals = append(approvals, ap)
	}
	return approvals, rows.Err()
}

// AppendEvent appends an audit event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, case_id, ts, type, payload)
		VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.CaseID, event.Ts, string(event.Type), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns audit events for a case ordered by timestamp.
func (s *SQLiteStore) ListEvents(ctx context.Context, caseID string, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, case_id, ts, type, payload
		FROM events WHERE case_id = ?
		ORDER BY ts, event_id
		LIMIT ?`,
		caseID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var payload string
		if err := rows.Scan(&ev.EventID, &ev.CaseID, &ev.Ts, &ev.Type, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload != "" {
			ev.Payload = json.RawMessage(payload)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
