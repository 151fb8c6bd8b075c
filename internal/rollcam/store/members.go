package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Member is a registered chat user.
type Member struct {
	Sender       string
	Name         string
	Transport    string
	RegisteredAt time.Time
}

// UpsertMember registers m, replacing the name of an existing member.
func (s *Store) UpsertMember(ctx context.Context, m *Member) error {
	if m.RegisteredAt.IsZero() {
		m.RegisteredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (sender, name, transport, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sender) DO UPDATE SET name = excluded.name
	`, m.Sender, m.Name, m.Transport, m.RegisteredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// GetMember returns the member registered for sender, or ErrNotFound.
func (s *Store) GetMember(ctx context.Context, sender string) (*Member, error) {
	m := &Member{}
	err := s.db.QueryRowContext(ctx, `
		SELECT sender, name, transport, registered_at FROM members WHERE sender = ?
	`, sender).Scan(&m.Sender, &m.Name, &m.Transport, &m.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %q: %w", sender, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListMembers returns all members ordered by registration time.
func (s *Store) ListMembers(ctx context.Context) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, name, transport, registered_at FROM members ORDER BY registered_at ASC, sender ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.Sender, &m.Name, &m.Transport, &m.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMember removes sender from the allow-list.
func (s *Store) DeleteMember(ctx context.Context, sender string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE sender = ?", sender)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %q: %w", sender, ErrNotFound)
	}
	return nil
}

// MemberCount returns the number of registered members.
func (s *Store) MemberCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}
