package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// FallbackSecret salted the oldest generation of password hashes, from
// installations that ran before SHEETPULSE_SECRET was configured.
//
// Deprecated: verification keeps trying it so those accounts can still log in
// (and get silently re-hashed), but no new hash is ever produced with it. A
// forced-rehash sweep should retire it entirely.
const FallbackSecret = "change-this-secret-key-in-production"

// legacySaltLen is how many leading characters of the secret the legacy
// scheme used as its global salt.
const legacySaltLen = 16

// HashPassword produces a bcrypt hash with a per-call random salt. The
// resulting string is self-describing and verifiable without any server
// state.
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	return string(b), err
}

// IsLegacyHash reports whether stored predates the bcrypt scheme. Bcrypt
// hashes are tagged with a $2a$/$2b$/$2y$ prefix; anything else is treated as
// a legacy salted-SHA256 digest.
func IsLegacyHash(stored string) bool {
	return !strings.HasPrefix(stored, "$2a$") &&
		!strings.HasPrefix(stored, "$2b$") &&
		!strings.HasPrefix(stored, "$2y$")
}

// VerifyPassword checks plaintext against a stored hash of any supported
// format. Modern hashes go through bcrypt. Legacy hashes are recomputed as
// SHA256(salt || plaintext) with the live secret's salt first, then the
// FallbackSecret salt. Empty stored hashes never verify.
//
// Callers that accept a legacy match own the follow-up: re-hash the plaintext
// with HashPassword and persist it, best-effort.
func VerifyPassword(plaintext, stored, secret string) bool {
	if stored == "" {
		return false
	}
	if !IsLegacyHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext)) == nil
	}
	if legacyDigestEqual(secret, plaintext, stored) {
		return true
	}
	return legacyDigestEqual(FallbackSecret, plaintext, stored)
}

func legacyDigestEqual(secret, plaintext, stored string) bool {
	digest := legacyHash(secret, plaintext)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(stored)) == 1
}

func legacyHash(secret, plaintext string) string {
	salt := secret
	if len(salt) > legacySaltLen {
		salt = salt[:legacySaltLen]
	}
	sum := sha256.Sum256([]byte(salt + plaintext))
	return hex.EncodeToString(sum[:])
}
