package sqlite

import (
	"context"
	"database/sql"

	"github.com/listenupapp/notes-server/internal/domain"
)

// RecordActivity appends an activity log entry.
func (s *Store) RecordActivity(ctx context.Context, entry *domain.ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		string(entry.Action),
		nullString(entry.IPAddress),
		formatTime(entry.Timestamp),
	)
	return err
}

// ListActivity returns a user's most recent activity, newest first.
func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]*domain.ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, ip_address, created_at
		FROM activity_logs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*domain.ActivityLog{}
	for rows.Next() {
		var (
			a         domain.ActivityLog
			action    string
			ip        sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &action, &ip, &createdAt); err != nil {
			return nil, err
		}
		a.Action = domain.ActivityType(action)
		a.IPAddress = ip.String
		if a.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, &a)
	}
	return entries, rows.Err()
}
