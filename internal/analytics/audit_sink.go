package analytics

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// AuditSink mirrors accepted alert-audit entries to a read-facing store.
// It is optional: SessionRuntime works with a nil sink. This is the only
// collaborator the core pipeline has with persistent storage, and it is
// write-only from the core's point of view — spec.md states explicitly
// that any audit-ring export is read-only from the consumer's side.
type AuditSink interface {
	WriteAudit(ctx context.Context, sessionID string, entries []AuditEntry) error
}

// PostgresAuditSink mirrors the audit ring into a Postgres table via sqlx.
// It is a thin, optional adapter: failures here never block the hot path,
// they are simply not retried (mirrors BroadcasterSendFailure policy).
type PostgresAuditSink struct {
	db *sqlx.DB
}

// NewPostgresAuditSink wraps an already-connected sqlx.DB (driverName
// "postgres" via github.com/lib/pq).
func NewPostgresAuditSink(db *sqlx.DB) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

const createAuditTableSQL = `
CREATE TABLE IF NOT EXISTS alert_audit (
	session_id TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	type       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	message    TEXT NOT NULL
)`

// EnsureSchema creates the audit table if it does not already exist.
func (s *PostgresAuditSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createAuditTableSQL)
	return err
}

const insertAuditSQL = `
INSERT INTO alert_audit (session_id, ts, type, severity, message)
VALUES (:session_id, :ts, :type, :severity, :message)`

type auditRow struct {
	SessionID string `db:"session_id"`
	TS        string `db:"ts"`
	Type      string `db:"type"`
	Severity  string `db:"severity"`
	Message   string `db:"message"`
}

// WriteAudit batch-inserts entries for one session.
func (s *PostgresAuditSink) WriteAudit(ctx context.Context, sessionID string, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]auditRow, len(entries))
	for i, e := range entries {
		rows[i] = auditRow{
			SessionID: sessionID,
			TS:        e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			Type:      e.Type,
			Severity:  string(e.Severity),
			Message:   e.Message,
		}
	}
	_, err := s.db.NamedExecContext(ctx, insertAuditSQL, rows)
	return err
}
