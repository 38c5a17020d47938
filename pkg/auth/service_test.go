package auth

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthops/sheetpulse/pkg/observability"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := NewService(NewStore(db), NewTokenIssuer("test-secret", 0), "test-secret", logger)
	return svc, mock, func() { db.Close() }
}

func userRows(u *User) *sqlmock.Rows {
	email := sql.NullString{String: u.Email, Valid: u.Email != ""}
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "role", "must_change_password", "created_at", "updated_at",
	}).AddRow(u.ID, u.Username, email, u.PasswordHash, u.Role, u.MustChangePassword, time.Now(), time.Now())
}

func TestBootstrapCreatesDefaultAdmin(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("admin").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("admin", "admin@example.com", sqlmock.AnyArg(), RoleAdmin, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(1, time.Now(), time.Now()))

	require.NoError(t, svc.Bootstrap(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrapIdempotent(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	existing := &User{ID: 1, Username: "admin", Role: RoleAdmin, PasswordHash: "$2a$10$x"}
	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("admin").
		WillReturnRows(userRows(existing))

	require.NoError(t, svc.Bootstrap(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginSuccess(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	user := &User{ID: 5, Username: "alice", Email: "alice@example.com", PasswordHash: hash, Role: RoleViewer}

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("alice").
		WillReturnRows(userRows(user))

	res, err := svc.Login(context.Background(), "alice", "correct-horse", false)
	require.NoError(t, err)

	id, ok := svc.Verify(res.Token)
	require.True(t, ok)
	assert.Equal(t, int64(5), id.UserID)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, RoleViewer, id.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownUser(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Login(context.Background(), "nobody", "pw", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	hash, err := HashPassword("right")
	require.NoError(t, err)
	user := &User{ID: 5, Username: "alice", PasswordHash: hash, Role: RoleViewer}

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("alice").
		WillReturnRows(userRows(user))

	_, err = svc.Login(context.Background(), "alice", "wrong", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginMigratesLegacyHash(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	stored := legacyDigest("test-secret", "oldpassword")
	user := &User{ID: 9, Username: "carol", PasswordHash: stored, Role: RoleViewer}

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("carol").
		WillReturnRows(userRows(user))
	mock.ExpectExec(`UPDATE users SET password_hash = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(sqlmock.AnyArg(), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.Login(context.Background(), "carol", "oldpassword", false)
	require.NoError(t, err)
	assert.False(t, IsLegacyHash(res.User.PasswordHash), "hash should be upgraded in place")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginLegacyMigrationFailureIsNonFatal(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	stored := legacyDigest("test-secret", "oldpassword")
	user := &User{ID: 9, Username: "carol", PasswordHash: stored, Role: RoleViewer}

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("carol").
		WillReturnRows(userRows(user))
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WillReturnError(sql.ErrConnDone)

	_, err := svc.Login(context.Background(), "carol", "oldpassword", false)
	assert.NoError(t, err, "login must succeed even when the re-hash write fails")
}

func TestLoginRememberExtendsExpiry(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	hash, err := HashPassword("pw-long-enough")
	require.NoError(t, err)
	user := &User{ID: 5, Username: "alice", PasswordHash: hash, Role: RoleViewer}

	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("alice").
		WillReturnRows(userRows(user))

	res, err := svc.Login(context.Background(), "alice", "pw-long-enough", true)
	require.NoError(t, err)

	parts := strings.Split(res.Token, ":")
	require.Len(t, parts, 5)
	expiry, err := strconv.ParseInt(parts[3], 10, 64)
	require.NoError(t, err)
	// A remember-me expiry lands roughly 30 days out, far beyond the 1h default.
	assert.Greater(t, expiry, time.Now().Add(29*24*time.Hour).Unix())
}

func TestCreateUserGeneratesPassword(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1 OR email = \$1`).
		WithArgs("dave").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("dave", "dave@example.com", sqlmock.AnyArg(), RoleViewer, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(11, time.Now(), time.Now()))

	u, password, err := svc.CreateUser(context.Background(), "dave", "dave@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, int64(11), u.ID)
	assert.Equal(t, RoleViewer, u.Role)
	assert.True(t, u.MustChangePassword)
	assert.Len(t, password, 12)
	assert.True(t, VerifyPassword(password, u.PasswordHash, "test-secret"))
}

func TestCreateUserRejectsDelimiterInUsername(t *testing.T) {
	svc, _, done := newTestService(t)
	defer done()

	_, _, err := svc.CreateUser(context.Background(), "eve:admin", "", RoleViewer)
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestCreateUserRejectsInvalidRole(t *testing.T) {
	svc, _, done := newTestService(t)
	defer done()

	_, _, err := svc.CreateUser(context.Background(), "frank", "", "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestCreateUserDuplicate(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	existing := &User{ID: 1, Username: "alice", PasswordHash: "$2a$10$x", Role: RoleViewer}
	mock.ExpectQuery(`SELECT .+ FROM users`).
		WithArgs("alice").
		WillReturnRows(userRows(existing))

	_, _, err := svc.CreateUser(context.Background(), "alice", "", RoleViewer)
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestChangePasswordTooShort(t *testing.T) {
	svc, _, done := newTestService(t)
	defer done()

	err := svc.ChangePassword(context.Background(), 1, "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestChangePassword(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec(`UPDATE users SET password_hash = \$1, must_change_password = FALSE`).
		WithArgs(sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.ChangePassword(context.Background(), 3, "new-password"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordUnknownUser(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs(sqlmock.AnyArg(), int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.ChangePassword(context.Background(), 99, "new-password")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUserEmptyPatch(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	// No SQL expectations: an empty patch never reaches the database.
	require.NoError(t, svc.UpdateUser(context.Background(), 1, UserPatch{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	role := RoleAdmin
	mock.ExpectExec(`UPDATE users SET updated_at = NOW\(\), role = \$1 WHERE id = \$2`).
		WithArgs(RoleAdmin, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.UpdateUser(context.Background(), 4, UserPatch{Role: &role}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserNotFound(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	name := "ghost"
	mock.ExpectExec(`UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdateUser(context.Background(), 404, UserPatch{Username: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteUser(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.DeleteUser(context.Background(), 7))
}

func TestDeleteUserNotFound(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec(`DELETE FROM users`).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.DeleteUser(context.Background(), 8)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGeneratePasswordAlphabet(t *testing.T) {
	pw, err := generatePassword(64)
	require.NoError(t, err)
	require.Len(t, pw, 64)
	for _, c := range pw {
		assert.Contains(t, passwordAlphabet, string(c))
	}
}
