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

// UserHandlers handles admin user provisioning.
type UserHandlers struct {
	auth   AuthService
	logger *observability.Logger
}

// NewUserHandlers creates a user handlers instance
func NewUserHandlers(authSvc AuthService, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{auth: authSvc, logger: logger}
}

// RegisterRoutes registers user administration routes. The whole group is
// admin-only.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	users := router.PathPrefix("/users").Subrouter()
	users.Use(middleware.RequireAdmin)
	users.HandleFunc("", h.list).Methods("GET")
	users.HandleFunc("", h.create).Methods("POST")
	users.HandleFunc("/{id}", h.update).Methods("PUT")
	users.HandleFunc("/{id}", h.delete).Methods("DELETE")
}

// list handles GET /api/users
func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.Users(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list users")
		httputil.WriteInternalError(w, "Failed to list users")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

// create handles POST /api/users. The generated password is returned exactly
// once.
func (h *UserHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Role     string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "Email is required")
		return
	}
	username := req.Username
	if username == "" {
		username = req.Email
	}

	user, password, err := h.auth.CreateUser(r.Context(), username, req.Email, req.Role)
	switch {
	case err == nil:
		httputil.WriteCreated(w, "User created", map[string]interface{}{
			"user":     user,
			"password": password,
		})
	case errors.Is(err, auth.ErrUsernameTaken):
		httputil.WriteConflict(w, "Username or email already exists")
	case errors.Is(err, auth.ErrInvalidUsername):
		httputil.WriteBadRequest(w, "Invalid username")
	case errors.Is(err, auth.ErrInvalidRole):
		httputil.WriteBadRequest(w, "Invalid role")
	default:
		h.logger.WithError(err).Error("failed to create user")
		httputil.WriteInternalError(w, "Failed to create user")
	}
}

// update handles PUT /api/users/{id}
func (h *UserHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Role     *string `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.auth.UpdateUser(r.Context(), id, auth.UserPatch{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	switch {
	case err == nil:
		user, err := h.auth.UserByID(r.Context(), id)
		if err != nil {
			h.logger.WithError(err).Error("failed to reload updated user")
			httputil.WriteInternalError(w, "Failed to load user")
			return
		}
		httputil.WriteSuccessMessage(w, "User updated", user)
	case errors.Is(err, auth.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	case errors.Is(err, auth.ErrInvalidUsername):
		httputil.WriteBadRequest(w, "Invalid username")
	case errors.Is(err, auth.ErrInvalidRole):
		httputil.WriteBadRequest(w, "Invalid role")
	default:
		h.logger.WithError(err).Error("failed to update user")
		httputil.WriteInternalError(w, "Failed to update user")
	}
}

// delete handles DELETE /api/users/{id}
func (h *UserHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := h.auth.DeleteUser(r.Context(), id)
	switch {
	case err == nil:
		httputil.WriteSuccessMessage(w, "User deleted", nil)
	case errors.Is(err, auth.ErrUserNotFound):
		httputil.WriteNotFound(w, "User not found")
	default:
		h.logger.WithError(err).Error("failed to delete user")
		httputil.WriteInternalError(w, "Failed to delete user")
	}
}
