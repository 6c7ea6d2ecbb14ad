package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/store"
)

// noteColumns must match the scan order in scanNote.
const noteColumns = `n.id, n.user_id, n.title, n.url, n.content, n.summary,
	n.processing_status, n.created_at, n.updated_at`

func scanNote(scanner interface{ Scan(dest ...any) error }) (*domain.Note, error) {
	var (
		n         domain.Note
		title     sql.NullString
		url       sql.NullString
		content   sql.NullString
		summary   sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&n.ID,
		&n.UserID,
		&title,
		&url,
		&content,
		&summary,
		&n.ProcessingStatus,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Title = stringPtr(title)
	n.URL = stringPtr(url)
	n.Content = stringPtr(content)
	n.Summary = stringPtr(summary)

	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	n.NoteTags = []domain.NoteTag{}
	return &n, nil
}

// CreateNoteWithOutbox inserts a note and its dispatch outbox entry in one
// transaction, so a committed note always has a pending notification.
func (s *Store) CreateNoteWithOutbox(ctx context.Context, note *domain.Note, entry *domain.OutboxEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes (id, user_id, title, url, content, summary, search_text, processing_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			note.ID,
			note.UserID,
			nullableString(note.Title),
			nullableString(note.URL),
			nullableString(note.Content),
			nullableString(note.Summary),
			note.SearchText(),
			note.ProcessingStatus,
			formatTime(note.CreatedAt),
			formatTime(note.UpdatedAt),
		)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return store.ErrUserNotFound
			}
			return fmt.Errorf("insert note: %w", err)
		}

		if entry == nil {
			return nil
		}
		return insertOutbox(ctx, tx, entry)
	})
}

// GetNote retrieves a note with its tags.
func (s *Store) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	return getNote(ctx, s.db, id)
}

func getNote(ctx context.Context, q querier, id string) (*domain.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, id)
	n, err := scanNote(row)
	if isNoRows(err) {
		return nil, store.ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}

	tags, err := loadNoteTags(ctx, q, []string{n.ID})
	if err != nil {
		return nil, err
	}
	if nts, ok := tags[n.ID]; ok {
		n.NoteTags = nts
	}
	return n, nil
}

// ListNotes returns a user's notes newest first with tags attached.
func (s *Store) ListNotes(ctx context.Context, userID string, filter store.NoteFilter) ([]*domain.Note, error) {
	var (
		where = []string{"n.user_id = ?"}
		args  = []any{userID}
	)

	// search_text is folded in Go; LIKE alone only ignores ASCII case.
	if term := strings.TrimSpace(filter.Search); term != "" {
		where = append(where, `n.search_text LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(domain.FoldCase(term)))
	}

	if tag := domain.NormalizeTagName(filter.Tag); tag != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM note_tags nt JOIN tags t ON t.id = nt.tag_id
			WHERE nt.note_id = n.id AND t.name = ?)`)
		args = append(args, tag)
	}

	query := `SELECT ` + noteColumns + ` FROM notes n WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY n.created_at DESC, n.id DESC`
	switch {
	case filter.Limit > 0:
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryNotes(ctx, query, args...)
}

// GetNotesByIDs returns the given notes owned by userID, preserving ids order.
// Unknown or foreign IDs are skipped.
func (s *Store) GetNotesByIDs(ctx context.Context, userID string, ids []string) ([]*domain.Note, error) {
	if len(ids) == 0 {
		return []*domain.Note{}, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, nid := range ids {
		args = append(args, nid)
	}

	notes, err := s.queryNotes(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.user_id = ? AND n.id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	ordered := make([]*domain.Note, 0, len(notes))
	for _, nid := range ids {
		if n, ok := byID[nid]; ok {
			ordered = append(ordered, n)
		}
	}
	return ordered, nil
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]*domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []*domain.Note{}
	ids := []string{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := loadNoteTags(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		if nts, ok := tags[n.ID]; ok {
			n.NoteTags = nts
		}
	}
	return notes, nil
}

// NoteStats counts a user's notes, notes since monthStart and distinct tags.
func (s *Store) NoteStats(ctx context.Context, userID string, monthStart time.Time) (*domain.NoteStats, error) {
	var stats domain.NoteStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM notes WHERE user_id = ?),
			(SELECT COUNT(*) FROM notes WHERE user_id = ? AND created_at >= ?),
			(SELECT COUNT(DISTINCT nt.tag_id) FROM note_tags nt JOIN notes n ON n.id = nt.note_id WHERE n.user_id = ?)`,
		userID, userID, formatTime(monthStart), userID,
	).Scan(&stats.TotalNotes, &stats.ThisMonth, &stats.TotalTags)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ApplyEnrichment reconciles a processor callback onto a note in one
// transaction. An unknown note returns store.ErrNoteNotFound with nothing written.
func (s *Store) ApplyEnrichment(ctx context.Context, u store.EnrichmentUpdate) (*domain.Note, error) {
	var updated *domain.Note

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE notes SET processing_status = ?, updated_at = ? WHERE id = ?`,
			u.ProcessingStatus, formatTime(u.UpdatedAt), u.NoteID)
		if err != nil {
			return fmt.Errorf("update note status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrNoteNotFound
		}

		if u.Summary != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE notes SET summary = ? WHERE id = ?`, *u.Summary, u.NoteID); err != nil {
				return fmt.Errorf("update note summary: %w", err)
			}
		}

		if u.Title != nil {
			query := `UPDATE notes SET title = ? WHERE id = ?`
			if u.TitleMode == store.TitleIfEmpty {
				query += ` AND (title IS NULL OR title = '')`
			}
			if _, err := tx.ExecContext(ctx, query, *u.Title, u.NoteID); err != nil {
				return fmt.Errorf("update note title: %w", err)
			}
		}

		if u.Tags != nil {
			if u.TagMode == store.TagsReplace {
				if _, err := tx.ExecContext(ctx,
					`DELETE FROM note_tags WHERE note_id = ?`, u.NoteID); err != nil {
					return fmt.Errorf("clear note tags: %w", err)
				}
			}
			for _, name := range u.Tags {
				tag, err := upsertTag(ctx, tx, name)
				if err != nil {
					return err
				}
				if err := attachTag(ctx, tx, u.NoteID, tag.ID); err != nil {
					return err
				}
			}
		}

		if updated, err = getNote(ctx, tx, u.NoteID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE notes SET search_text = ? WHERE id = ?`, updated.SearchText(), u.NoteID); err != nil {
			return fmt.Errorf("update note search text: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
