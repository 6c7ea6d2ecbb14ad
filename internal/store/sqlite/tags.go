package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/id"
	"github.com/listenupapp/notes-server/internal/store"
)

// querier is satisfied by *sql.DB and *sql.Tx so tag helpers can run
// standalone or inside a reconciliation transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tagColumns must match the scan order in scanTag.
const tagColumns = `id, name, created_at`

func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var (
		t         domain.Tag
		createdAt string
	)
	if err := scanner.Scan(&t.ID, &t.Name, &createdAt); err != nil {
		return nil, err
	}

	var err error
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTagByName retrieves a tag by its normalized name.
func (s *Store) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	return getTagByName(ctx, s.db, domain.NormalizeTagName(name))
}

func getTagByName(ctx context.Context, q querier, name string) (*domain.Tag, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE name = ?`, name)
	t, err := scanTag(row)
	if isNoRows(err) {
		return nil, store.ErrTagNotFound
	}
	return t, err
}

// UpsertTag returns the tag for the normalized name, creating it when absent.
// The UNIQUE constraint on tags.name is the serialization point: a concurrent
// creator's insert fails and re-reads the winner's row.
func (s *Store) UpsertTag(ctx context.Context, name string) (*domain.Tag, error) {
	return upsertTag(ctx, s.db, name)
}

func upsertTag(ctx context.Context, q querier, raw string) (*domain.Tag, error) {
	name := domain.NormalizeTagName(raw)
	if name == "" {
		return nil, store.ErrInvalidInput.WithMessage("tag name is empty after normalization")
	}

	// Fast path; correctness does not depend on it.
	t, err := getTagByName(ctx, q, name)
	if err == nil {
		return t, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, err
	}
	t = &domain.Tag{ID: tagID, Name: name, CreatedAt: time.Now()}

	_, err = q.ExecContext(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, formatTime(t.CreatedAt))
	if isUniqueViolation(err) {
		return getTagByName(ctx, q, name)
	}
	if err != nil {
		return nil, fmt.Errorf("insert tag %q: %w", name, err)
	}
	return t, nil
}

// AttachTag associates a tag with a note. An existing association is success.
func (s *Store) AttachTag(ctx context.Context, noteID, tagID string) error {
	return attachTag(ctx, s.db, noteID, tagID)
}

func attachTag(ctx context.Context, q querier, noteID, tagID string) error {
	ntID, err := id.Generate(id.PrefixNoteTag)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO note_tags (id, note_id, tag_id) VALUES (?, ?, ?)`,
		ntID, noteID, tagID)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("attach tag %s to note %s: %w", tagID, noteID, err)
	}
	return nil
}

// ListUserTags returns the distinct tags used on a user's notes, ordered by name.
func (s *Store) ListUserTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.id, t.name, t.created_at
		FROM tags t
		JOIN note_tags nt ON nt.tag_id = t.id
		JOIN notes n ON n.id = nt.note_id
		WHERE n.user_id = ?
		ORDER BY t.name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []*domain.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// loadNoteTags fetches associations for the given notes keyed by note ID.
func loadNoteTags(ctx context.Context, q querier, noteIDs []string) (map[string][]domain.NoteTag, error) {
	result := make(map[string][]domain.NoteTag, len(noteIDs))
	if len(noteIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(noteIDs))
	for i, nid := range noteIDs {
		args[i] = nid
	}

	rows, err := q.QueryContext(ctx, `
		SELECT nt.id, nt.note_id, t.id, t.name, t.created_at
		FROM note_tags nt
		JOIN tags t ON t.id = nt.tag_id
		WHERE nt.note_id IN (`+placeholders(len(noteIDs))+`)
		ORDER BY t.name ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			nt        domain.NoteTag
			createdAt string
		)
		if err := rows.Scan(&nt.ID, &nt.NoteID, &nt.Tag.ID, &nt.Tag.Name, &createdAt); err != nil {
			return nil, err
		}
		if nt.Tag.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		nt.TagID = nt.Tag.ID
		result[nt.NoteID] = append(result[nt.NoteID], nt)
	}
	return result, rows.Err()
}
