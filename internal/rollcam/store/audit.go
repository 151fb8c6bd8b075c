package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditEntry is one handled chat message.
type AuditEntry struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	Transport    string
	Sender       string
	Room         string
	Message      string
	Intent       string
	Machine      sql.NullString
	ReplyKind    string
	Duration     time.Duration
	ErrorMessage sql.NullString
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// WriteAudit records e. Timestamp defaults to now.
func (s *Store) WriteAudit(ctx context.Context, e *AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, transport, sender, room, message, intent, machine, reply_kind, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Timestamp, e.TraceID, e.Transport, e.Sender, e.Room, e.Message, e.Intent,
		e.Machine, e.ReplyKind, e.Duration.Milliseconds(), e.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

const auditColumns = `id, ts, trace_id, transport, sender, room, message, intent, machine, reply_kind, duration_ms, error_message`

// GetAuditLog returns the most recent entries, newest first.
func (s *Store) GetAuditLog(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return scanAudit(rows)
}

// GetAuditByTrace returns every entry with the given trace id, oldest first.
func (s *Store) GetAuditByTrace(ctx context.Context, traceID string) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_log
		WHERE trace_id = ?
		ORDER BY ts ASC, id ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log by trace: %w", err)
	}
	return scanAudit(rows)
}

// AuditCount returns the number of audit rows.
func (s *Store) AuditCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit log: %w", err)
	}
	return n, nil
}

func scanAudit(rows *sql.Rows) ([]*AuditEntry, error) {
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		var ms int64
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.TraceID, &e.Transport, &e.Sender, &e.Room,
			&e.Message, &e.Intent, &e.Machine, &e.ReplyKind, &ms, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return entries, nil
}
