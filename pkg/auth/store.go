package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpdateResult distinguishes the outcomes of a partial update. The HTTP layer
// treats UpdateUnchanged as success, matching the externally observed
// behavior clients already depend on.
type UpdateResult int

const (
	UpdateNotFound UpdateResult = iota
	UpdateUnchanged
	UpdateApplied
)

// UserPatch carries the optional fields of a partial user update. Nil fields
// are left untouched.
type UserPatch struct {
	Username     *string
	Email        *string
	Role         *string
	PasswordHash *string
}

// Store persists user records in PostgreSQL. All methods convert
// sql.ErrNoRows to nil results so callers never branch on driver errors.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store on an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = "id, username, email, password_hash, role, must_change_password, created_at, updated_at"

// GetByIdentifier looks a user up by username or email. Returns (nil, nil)
// when no user matches.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, identifier))
}

// GetByID returns the user with the given id, or (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// List returns all users ordered by id.
func (s *Store) List(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create inserts a new user and fills in its id and timestamps.
func (s *Store) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, must_change_password)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.Role, u.MustChangePassword,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %q: %w", u.Username, err)
	}
	return nil
}

// SetPasswordHash replaces the stored hash without touching the
// must-change-password flag. The login flow uses it to migrate legacy hashes.
func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return nil
}

// ChangePassword replaces the stored hash and clears the
// must-change-password flag.
func (s *Store) ChangePassword(ctx context.Context, id int64, hash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, must_change_password = FALSE, updated_at = NOW() WHERE id = $2`,
		hash, id)
	if err != nil {
		return false, fmt.Errorf("failed to change password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update applies a partial update. An empty patch is reported as
// UpdateUnchanged without touching the database.
func (s *Store) Update(ctx context.Context, id int64, patch UserPatch) (UpdateResult, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	arg := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, arg))
		args = append(args, value)
		arg++
	}
	if patch.Username != nil {
		add("username", *patch.Username)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if len(sets) == 1 {
		return UpdateUnchanged, nil
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), arg)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return UpdateNotFound, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return UpdateNotFound, err
	}
	if n == 0 {
		return UpdateNotFound, nil
	}
	return UpdateApplied, nil
}

// Delete removes a user permanently. Returns false when no row matched.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	u, err := scanUserFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

func scanUserRow(rows *sql.Rows) (*User, error) {
	u, err := scanUserFrom(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return u, nil
}

func scanUserFrom(scan func(...interface{}) error) (*User, error) {
	var (
		u         User
		email     sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)
	err := scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.Role, &u.MustChangePassword, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.CreatedAt = createdAt
	u.UpdatedAt = updatedAt
	return &u, nil
}
