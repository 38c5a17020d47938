package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TokenDelimiter separates the fields of the wire format. Usernames must
	// never contain it; CreateUser rejects them at provisioning time.
	TokenDelimiter = ":"

	// tokenFields is the exact field count of a well-formed token.
	tokenFields = 5

	// signatureLen is the number of hex characters of the SHA256 digest kept
	// as the signature.
	signatureLen = 32

	// DefaultTokenTTL applies when the caller passes no explicit lifetime.
	DefaultTokenTTL = time.Hour

	// RememberMeTTL is the extended lifetime for "remember me" logins.
	RememberMeTTL = 30 * 24 * time.Hour
)

// TokenIssuer mints and verifies self-contained bearer tokens. Wire format:
//
//	{user_id}:{username}:{role}:{expiry_unix}:{signature}
//
// where signature is the first 32 hex characters of
// SHA256("{user_id}:{username}:{role}:{expiry_unix}:{secret}"). Tokens are
// never stored server-side and cannot be revoked before expiry; rotating the
// secret invalidates every outstanding token at once.
type TokenIssuer struct {
	secret     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates an issuer bound to the process-wide signing secret.
// A non-positive defaultTTL falls back to DefaultTokenTTL.
func NewTokenIssuer(secret string, defaultTTL time.Duration) *TokenIssuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, defaultTTL: defaultTTL, now: time.Now}
}

// Issue mints a token for the given claims. A non-positive ttl uses the
// issuer default.
func (ti *TokenIssuer) Issue(userID int64, username, role string, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = ti.defaultTTL
	}
	expiry := ti.now().Add(ttl).Unix()
	data := fmt.Sprintf("%d:%s:%s:%d", userID, username, role, expiry)
	return data + TokenDelimiter + ti.sign(data)
}

// Verify parses and validates a token, failing closed: any malformed field
// count, non-numeric expiry, past expiry, or signature mismatch yields
// (zero, false). On success it returns the embedded identity.
func (ti *TokenIssuer) Verify(token string) (Identity, bool) {
	parts := strings.Split(token, TokenDelimiter)
	if len(parts) != tokenFields {
		return Identity{}, false
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Identity{}, false
	}
	expiry, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Identity{}, false
	}
	if expiry <= ti.now().Unix() {
		return Identity{}, false
	}

	data := strings.Join(parts[:tokenFields-1], TokenDelimiter)
	expected := ti.sign(data)
	if subtle.ConstantTimeCompare([]byte(parts[4]), []byte(expected)) != 1 {
		return Identity{}, false
	}

	return Identity{UserID: userID, Username: parts[1], Role: parts[2]}, true
}

func (ti *TokenIssuer) sign(data string) string {
	sum := sha256.Sum256([]byte(data + TokenDelimiter + ti.secret))
	return hex.EncodeToString(sum[:])[:signatureLen]
}
