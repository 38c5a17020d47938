// Package api exposes the dashboard REST surface: authentication, user and
// site administration, sheet inspection, squad management and the manual
// push trigger.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/growthops/sheetpulse/pkg/auth"
	"github.com/growthops/sheetpulse/pkg/httputil"
	"github.com/growthops/sheetpulse/pkg/middleware"
	"github.com/growthops/sheetpulse/pkg/observability"
	"github.com/growthops/sheetpulse/pkg/push"
	"github.com/growthops/sheetpulse/pkg/sheets"
	"github.com/growthops/sheetpulse/pkg/storage"
)

// AuthService is the slice of the auth layer the handlers call.
type AuthService interface {
	middleware.TokenVerifier
	Login(ctx context.Context, identifier, password string, remember bool) (*auth.LoginResult, error)
	ChangePassword(ctx context.Context, userID int64, newPassword string) error
	CreateUser(ctx context.Context, username, email, role string) (*auth.User, string, error)
	UpdateUser(ctx context.Context, userID int64, patch auth.UserPatch) error
	DeleteUser(ctx context.Context, userID int64) error
	Users(ctx context.Context) ([]*auth.User, error)
	UserByID(ctx context.Context, userID int64) (*auth.User, error)
}

// SiteStore is the slice of the storage layer the handlers call.
type SiteStore interface {
	UpsertSite(ctx context.Context, in storage.SiteInput) (*storage.Site, error)
	UpdateSite(ctx context.Context, id int64, patch storage.SitePatch) (storage.UpdateResult, error)
	SiteConfigByName(ctx context.Context, name string) (*storage.SiteConfig, error)
	SiteByID(ctx context.Context, id int64) (*storage.Site, error)
	ListSites(ctx context.Context, filter storage.SiteFilter) ([]*storage.Site, error)
	DeleteSiteByID(ctx context.Context, id int64) error
	DeleteSiteByName(ctx context.Context, name string) error
	Squads(ctx context.Context) ([]*storage.Squad, error)
	CreateSquad(ctx context.Context, name, webhookURL string) (*storage.Squad, error)
	UpdateSquad(ctx context.Context, name string, newName, webhookURL *string) error
	DeleteSquad(ctx context.Context, name string) error
	RecentLogs(ctx context.Context, limit int) ([]*storage.ProcessingLog, error)
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// SheetSource reads spreadsheets for the inspection endpoints.
type SheetSource interface {
	Worksheets(ctx context.Context, spreadsheetID string) ([]sheets.Worksheet, error)
	Values(ctx context.Context, spreadsheetID, sheetName string) ([][]string, error)
}

// PushStarter launches a batch push run.
type PushStarter interface {
	ProcessAll(ctx context.Context) (push.RunResult, error)
}

// Dependencies carries everything the server wires together.
type Dependencies struct {
	Auth           AuthService
	Store          SiteStore
	Sheets         SheetSource
	Push           PushStarter
	Health         *observability.HealthChecker
	Metrics        *observability.Metrics
	Logger         *observability.Logger
	AllowedOrigins []string
}

// Server is the assembled HTTP API.
type Server struct {
	router *mux.Router
	deps   Dependencies
}

// NewServer creates the API server and registers all routes.
func NewServer(deps Dependencies) *Server {
	if deps.AllowedOrigins == nil {
		deps.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.SecurityHeadersMiddleware)
	s.router.Use(httputil.CORSMiddleware(s.deps.AllowedOrigins))
	s.router.Use(httputil.RecoveryMiddleware(s.deps.Logger))
	s.router.Use(httputil.LoggingMiddleware(s.deps.Logger))
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
		s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods("GET")
	}

	authHandlers := NewAuthHandlers(s.deps.Auth, s.deps.Logger)

	// Public surface: login and health only.
	s.router.HandleFunc("/api/auth/login", authHandlers.login).Methods("POST")
	if s.deps.Health != nil {
		s.router.HandleFunc("/api/health", s.deps.Health.Handler).Methods("GET")
	}

	// Everything else under /api sits behind the bearer gate.
	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.Auth(s.deps.Auth))

	authHandlers.RegisterRoutes(protected)
	NewUserHandlers(s.deps.Auth, s.deps.Logger).RegisterRoutes(protected)
	NewSiteHandlers(s.deps.Store, s.deps.Sheets, s.deps.Logger).RegisterRoutes(protected)
	NewSheetHandlers(s.deps.Sheets, s.deps.Logger).RegisterRoutes(protected)
	NewSquadHandlers(s.deps.Store, s.deps.Logger).RegisterRoutes(protected)
	NewDashboardHandlers(s.deps.Store, s.deps.Logger).RegisterRoutes(protected)
	NewProcessHandlers(s.deps.Push, s.deps.Logger).RegisterRoutes(protected)
}
