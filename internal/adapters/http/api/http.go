// Package api exposes the sync service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/kata/internal/adapters/repository"
	service "github.com/okian/kata/internal/app"
	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/source"
	"github.com/okian/kata/pkg/logger"
)

// Dependencies is the service surface the handlers need.
type Dependencies interface {
	VerifyUsername(ctx context.Context, username string) bool
	GetComprehensiveUserData(ctx context.Context, username string) (model.SyncResult, error)
	EnqueueSync(ctx context.Context, username string) (accepted, duplicate bool, err error)
	LatestSync(ctx context.Context, username string) (model.SyncResult, error)
	LastSyncFailure(ctx context.Context, username string) (repository.Failure, bool)
	GetDailyProblem(ctx context.Context) (model.DailyProblem, error)
	GetProblems(ctx context.Context, q model.ProblemQuery) (model.ProblemPage, error)
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	usersHandler    *UsersHandler
	problemsHandler *ProblemsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		usersHandler:    NewUsersHandler(deps, log),
		problemsHandler: NewProblemsHandler(deps, log),
	}
}

// Register attaches all API routes to r. The routes get their own middleware
// group, so r may already carry other routes.
func (s *Server) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID, middleware.Recoverer)

		r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
		r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
		r.Get("/daily", MetricsMiddleware(s.problemsHandler.HandleDaily, "daily"))
		r.Get("/problems", MetricsMiddleware(s.problemsHandler.HandleProblems, "problems"))

		r.Route("/users/{username}", func(r chi.Router) {
			r.Get("/verify", MetricsMiddleware(s.usersHandler.HandleVerify, "verify"))
			r.Get("/profile", MetricsMiddleware(s.usersHandler.HandleProfile, "profile"))
			r.Post("/sync", MetricsMiddleware(s.usersHandler.HandleEnqueueSync, "sync_enqueue"))
			r.Get("/sync", MetricsMiddleware(s.usersHandler.HandleLatestSync, "sync_latest"))
		})
	})
}

// Router returns a chi router with every API route registered.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps a service error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidUsername):
		return http.StatusBadRequest, "invalid_username"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_started"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, source.ErrNotFound):
		return http.StatusNotFound, source.KindOf(err)
	case errors.Is(err, source.ErrAllProvidersExhausted),
		errors.Is(err, source.ErrRateLimited),
		errors.Is(err, source.ErrTimeout):
		return http.StatusServiceUnavailable, source.KindOf(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, source.KindOf(err)
	default:
		return http.StatusBadGateway, source.KindOf(err)
	}
}
