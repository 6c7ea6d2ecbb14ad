package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/store"
)

// outboxColumns must match the scan order in scanOutbox.
const outboxColumns = `id, note_id, payload, status, attempts, next_attempt_at, last_error, created_at, updated_at`

func scanOutbox(scanner interface{ Scan(dest ...any) error }) (*domain.OutboxEntry, error) {
	var (
		e           domain.OutboxEntry
		payload     string
		status      string
		nextAttempt string
		lastError   sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := scanner.Scan(&e.ID, &e.NoteID, &payload, &status, &e.Attempts,
		&nextAttempt, &lastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.Payload = []byte(payload)
	e.Status = domain.OutboxStatus(status)
	e.LastError = lastError.String

	if e.NextAttemptAt, err = parseTime(nextAttempt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, e *domain.OutboxEntry) error {
	if e.Status == "" {
		e.Status = domain.OutboxPending
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO enrichment_outbox (id, note_id, payload, status, attempts, next_attempt_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.NoteID,
		string(e.Payload),
		string(e.Status),
		e.Attempts,
		formatTime(e.NextAttemptAt),
		nullString(e.LastError),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ClaimOutbox locks up to limit due entries for delivery. Claimed entries move
// to processing with attempts incremented and next_attempt_at set to the lease
// expiry, so entries held by a crashed worker become due again on their own.
func (s *Store) ClaimOutbox(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*domain.OutboxEntry, error) {
	var claimed []*domain.OutboxEntry

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+outboxColumns+` FROM enrichment_outbox
			WHERE status IN (?, ?) AND next_attempt_at <= ?
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT ?`,
			string(domain.OutboxPending), string(domain.OutboxProcessing), formatTime(now), limit)
		if err != nil {
			return fmt.Errorf("select due outbox entries: %w", err)
		}

		for rows.Next() {
			e, err := scanOutbox(rows)
			if err != nil {
				rows.Close()
				return err
			}
			claimed = append(claimed, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		leaseUntil := now.Add(lease)
		for _, e := range claimed {
			if _, err := tx.ExecContext(ctx, `
				UPDATE enrichment_outbox
				SET status = ?, attempts = attempts + 1, next_attempt_at = ?, updated_at = ?
				WHERE id = ?`,
				string(domain.OutboxProcessing), formatTime(leaseUntil), formatTime(now), e.ID); err != nil {
				return fmt.Errorf("claim outbox entry %s: %w", e.ID, err)
			}
			e.Status = domain.OutboxProcessing
			e.Attempts++
			e.NextAttemptAt = leaseUntil
			e.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		claimed = []*domain.OutboxEntry{}
	}
	return claimed, nil
}

// MarkOutboxDelivered records a successful delivery.
func (s *Store) MarkOutboxDelivered(ctx context.Context, id string, at time.Time) error {
	return s.setOutboxStatus(ctx, id, domain.OutboxDelivered, "", at, at)
}

// MarkOutboxSkipped records that dispatch was disabled or unconfigured.
func (s *Store) MarkOutboxSkipped(ctx context.Context, id, reason string, at time.Time) error {
	return s.setOutboxStatus(ctx, id, domain.OutboxSkipped, reason, at, at)
}

// RescheduleOutbox returns an entry to pending, due at next.
func (s *Store) RescheduleOutbox(ctx context.Context, id string, next time.Time, lastErr string) error {
	return s.setOutboxStatus(ctx, id, domain.OutboxPending, lastErr, next, time.Now())
}

// MarkOutboxFailed records that delivery attempts are exhausted.
func (s *Store) MarkOutboxFailed(ctx context.Context, id, lastErr string, at time.Time) error {
	return s.setOutboxStatus(ctx, id, domain.OutboxFailed, lastErr, at, at)
}

func (s *Store) setOutboxStatus(ctx context.Context, id string, status domain.OutboxStatus, lastErr string, next, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_outbox
		SET status = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?`,
		string(status), nullString(lastErr), formatTime(next), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update outbox entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrOutboxNotFound
	}
	return nil
}

// PruneOutbox deletes delivered and skipped entries last updated before the cutoff.
// Failed entries are kept for inspection.
func (s *Store) PruneOutbox(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM enrichment_outbox
		WHERE status IN (?, ?) AND updated_at < ?`,
		string(domain.OutboxDelivered), string(domain.OutboxSkipped), formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountOutboxByStatus returns the number of entries in each status.
func (s *Store) CountOutboxByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM enrichment_outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.OutboxStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.OutboxStatus(status)] = n
	}
	return counts, rows.Err()
}
