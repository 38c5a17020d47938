package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/growthops/sheetpulse/pkg/observability"
)

// Sentinel errors surfaced to the API layer. Login deliberately collapses
// "no such user" and "wrong password" into ErrInvalidCredentials so responses
// cannot be used to enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

const (
	// MinPasswordLen applies to user-chosen passwords on change-password.
	MinPasswordLen = 6

	generatedPasswordLen = 12
	passwordAlphabet     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// Bootstrap credentials created on first start so operators can log in to an
// empty installation. The account is flagged must_change_password.
const (
	bootstrapUsername = "admin"
	bootstrapPassword = "admin123"
	bootstrapEmail    = "admin@example.com"
)

// Service implements the account lifecycle: bootstrap, login with transparent
// legacy-hash migration, token verification, and admin-driven user CRUD.
type Service struct {
	store  *Store
	issuer *TokenIssuer
	secret string
	logger *observability.Logger
}

// NewService wires the auth service. secret is the shared signing and legacy
// salt secret; it must match what minted any outstanding tokens.
func NewService(store *Store, issuer *TokenIssuer, secret string, logger *observability.Logger) *Service {
	return &Service{store: store, issuer: issuer, secret: secret, logger: logger}
}

// Bootstrap ensures the default admin account exists. It is idempotent and
// safe to run on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	existing, err := s.store.GetByIdentifier(ctx, bootstrapUsername)
	if err != nil {
		return fmt.Errorf("failed to check for bootstrap user: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := HashPassword(bootstrapPassword)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}
	u := &User{
		Username:           bootstrapUsername,
		Email:              bootstrapEmail,
		PasswordHash:       hash,
		Role:               RoleAdmin,
		MustChangePassword: true,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return fmt.Errorf("failed to create bootstrap user: %w", err)
	}
	s.logger.WithField("username", bootstrapUsername).Warn("created default admin account, change its password immediately")
	return nil
}

// Login authenticates by username or email and mints a bearer token. remember
// extends the token lifetime to RememberMeTTL. All failure modes return
// ErrInvalidCredentials; the distinction is only logged.
func (s *Service) Login(ctx context.Context, identifier, password string, remember bool) (*LoginResult, error) {
	user, err := s.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		s.logger.WithField("identifier", identifier).Warn("login attempt for unknown user")
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, user.PasswordHash, s.secret) {
		s.logger.WithField("username", user.Username).Warn("login attempt with wrong password")
		return nil, ErrInvalidCredentials
	}

	if IsLegacyHash(user.PasswordHash) {
		s.migrateLegacyHash(ctx, user, password)
	}

	ttl := time.Duration(0)
	if remember {
		ttl = RememberMeTTL
	}
	token := s.issuer.Issue(user.ID, user.Username, user.Role, ttl)
	s.logger.WithField("username", user.Username).Info("user logged in")
	return &LoginResult{Token: token, User: user}, nil
}

// migrateLegacyHash upgrades a legacy salted-SHA256 hash to bcrypt while the
// plaintext is in hand. Failures only log; the login already succeeded and the
// next one retries the migration.
func (s *Service) migrateLegacyHash(ctx context.Context, user *User, password string) {
	hash, err := HashPassword(password)
	if err != nil {
		s.logger.WithError(err).WithField("username", user.Username).Warn("failed to re-hash legacy password")
		return
	}
	if err := s.store.SetPasswordHash(ctx, user.ID, hash); err != nil {
		s.logger.WithError(err).WithField("username", user.Username).Warn("failed to persist migrated password hash")
		return
	}
	user.PasswordHash = hash
	s.logger.WithField("username", user.Username).Info("migrated legacy password hash")
}

// Verify validates a bearer token and returns the identity it carries.
func (s *Service) Verify(token string) (Identity, bool) {
	return s.issuer.Verify(token)
}

// CreateUser provisions an account with a generated single-use password. The
// plaintext is returned exactly once so an admin can hand it over; it is
// never stored or logged.
func (s *Service) CreateUser(ctx context.Context, username, email, role string) (*User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, TokenDelimiter) {
		return nil, "", ErrInvalidUsername
	}
	if role == "" {
		role = RoleViewer
	}
	if !ValidRole(role) {
		return nil, "", ErrInvalidRole
	}

	existing, err := s.store.GetByIdentifier(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, "", ErrUsernameTaken
	}

	password, err := generatePassword(generatedPasswordLen)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Username:           username,
		Email:              strings.TrimSpace(email),
		PasswordHash:       hash,
		Role:               role,
		MustChangePassword: true,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, "", err
	}
	s.logger.WithFields(map[string]interface{}{
		"username": username,
		"role":     role,
	}).Info("created user")
	return u, password, nil
}

// ChangePassword sets a new user-chosen password and clears the
// must-change-password flag.
func (s *Service) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	if len(newPassword) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	ok, err := s.store.ChangePassword(ctx, userID, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	s.logger.WithField("user_id", userID).Info("password changed")
	return nil
}

// UpdateUser applies a partial update to a user record. An empty patch
// succeeds without touching the database.
func (s *Service) UpdateUser(ctx context.Context, userID int64, patch UserPatch) error {
	if patch.Username != nil {
		trimmed := strings.TrimSpace(*patch.Username)
		if trimmed == "" || strings.Contains(trimmed, TokenDelimiter) {
			return ErrInvalidUsername
		}
		patch.Username = &trimmed
	}
	if patch.Role != nil && !ValidRole(*patch.Role) {
		return ErrInvalidRole
	}
	res, err := s.store.Update(ctx, userID, patch)
	if err != nil {
		return err
	}
	if res == UpdateNotFound {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes an account. Outstanding tokens for the account keep
// verifying until they expire; the gate re-checks nothing server-side.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	ok, err := s.store.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	s.logger.WithField("user_id", userID).Info("deleted user")
	return nil
}

// Users lists all accounts.
func (s *Service) Users(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// UserByID fetches a single account.
func (s *Service) UserByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func generatePassword(length int) (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b), nil
}
