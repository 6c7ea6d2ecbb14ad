package sqlite

import (
	"context"
	"database/sql"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, name, email, role, created_at, updated_at, deleted_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)

	if err := scanner.Scan(&u.ID, &u.Name, &u.Email, &role, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if u.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user. Emails are stored normalized; a duplicate
// returns store.ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user.Role == "" {
		user.Role = domain.RoleMember
	}
	user.Email = domain.NormalizeEmail(user.Email)

	var deletedAt sql.NullString
	if user.DeletedAt != nil {
		deletedAt = nullString(formatTime(*user.DeletedAt))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		string(user.Role),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		deletedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrEmailTaken
	}
	return err
}

// GetUser retrieves a live user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id)

	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// GetUserByEmail retrieves a live user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`,
		domain.NormalizeEmail(email))

	u, err := scanUser(row)
	if isNoRows(err) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

// ListUsers returns all live users ordered by creation.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
