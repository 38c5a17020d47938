// Package middleware provides the authentication and authorization gates in
// front of the protected API surface.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/growthops/sheetpulse/pkg/auth"
	"github.com/growthops/sheetpulse/pkg/contextkeys"
	"github.com/growthops/sheetpulse/pkg/httputil"
)

// TokenVerifier validates a bearer token and resolves the identity it
// carries.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, bool)
}

// Auth rejects requests without a valid bearer token. A missing or malformed
// Authorization header yields MISSING_TOKEN; a present but unverifiable token
// yields INVALID_TOKEN. The resolved identity is stored in the request
// context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteUnauthorized(w, "Token is missing", httputil.CodeMissingToken)
				return
			}

			identity, ok := verifier.Verify(token)
			if !ok {
				httputil.WriteUnauthorized(w, "Token is invalid or expired", httputil.CodeInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin identities with 403. It must run inside
// Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || !identity.IsAdmin() {
			httputil.WriteForbidden(w, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(auth.Identity)
	return identity, ok
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// Anything other than the exact two-part Bearer form is treated as absent.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
