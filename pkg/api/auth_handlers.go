package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/auth"
	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/middleware"
	"github.com/growthops/sheetpulse/pkg/observability"
)

// AuthHandlers handles login, token introspection and password changes.
type AuthHandlers struct {
	auth   AuthService
	logger *observability.Logger
}

// NewAuthHandlers creates an auth handlers instance
func NewAuthHandlers(authSvc AuthService, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authSvc, logger: logger}
}

// RegisterRoutes registers the authenticated auth routes. Login is public
// and registered by the server separately.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/verify", h.verify).Methods("GET")
	router.HandleFunc("/auth/me", h.me).Methods("GET")
	router.HandleFunc("/auth/change-password", h.changePassword).Methods("POST")
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "Username and password are required")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password, req.Remember)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid credentials", httputil.CodeInvalidCredentials)
			return
		}
		h.logger.WithError(err).Error("login failed")
		httputil.WriteInternalError(w, "Login failed")
		return
	}

	httputil.WriteSuccessMessage(w, "Login successful", result)
}

// verify handles GET /api/auth/verify
func (h *AuthHandlers) verify(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	httputil.WriteSuccessMessage(w, "Token is valid", map[string]interface{}{
		"valid": true,
		"user":  identity,
	})
}

// me handles GET /api/auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	user, err := h.auth.UserByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			// Token outlived the account.
			httputil.WriteUnauthorized(w, "Token is invalid or expired", httputil.CodeInvalidToken)
			return
		}
		h.logger.WithError(err).Error("failed to load current user")
		httputil.WriteInternalError(w, "Failed to load user")
		return
	}
	httputil.WriteSuccess(w, user)
}

// changePassword handles POST /api/auth/change-password
func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	var req struct {
		NewPassword string `json:"new_password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.auth.ChangePassword(r.Context(), identity.UserID, req.NewPassword)
	switch {
	case err == nil:
		httputil.WriteSuccessMessage(w, "Password changed", nil)
	case errors.Is(err, auth.ErrPasswordTooShort):
		httputil.WriteBadRequest(w, "Password must be at least 6 characters")
	case errors.Is(err, auth.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	default:
		h.logger.WithError(err).Error("failed to change password")
		httputil.WriteInternalError(w, "Failed to change password")
	}
}
