package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qforge/qbank/repository"
)

// SessionEndpoints exposes the session bootstrap over plain HTTP. Each request
// gets its own SessionManager resolved synchronously from the request cookies;
// the streaming variant lives on the websocket.
type SessionEndpoints struct {
	authService *AuthService
	repo        *repository.Repository
	sessionCfg  SessionConfig
	policy      RoutePolicy
}

func NewSessionEndpoints(authService *AuthService, repo *repository.Repository, sessionCfg SessionConfig, policy RoutePolicy) *SessionEndpoints {
	return &SessionEndpoints{
		authService: authService,
		repo:        repo,
		sessionCfg:  sessionCfg,
		policy:      policy,
	}
}

func (e *SessionEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", e.GetSessionHandler)
		r.Get("/route", e.RouteDecisionHandler)
	})
}

// GetSessionHandler resolves and returns the session snapshot for the caller.
// This endpoint is public: an unauthenticated caller gets an anonymous
// snapshot, not a 401.
func (e *SessionEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	manager := NewSessionManager(e.authService.RequestChecker(r), e.repo, e.sessionCfg)
	snapshot := manager.ResolveOnce(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)

	slog.Info("Session resolved", "authenticated", snapshot.User != nil)
}

// RouteDecisionHandler evaluates the navigation policy for the caller's
// session at the given path.
func (e *SessionEndpoints) RouteDecisionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	manager := NewSessionManager(e.authService.RequestChecker(r), e.repo, e.sessionCfg)
	snapshot := manager.ResolveOnce(r.Context())
	decision := e.policy.Evaluate(snapshot, path)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)

	slog.Info("Route evaluated", "path", path, "redirect", decision.Redirect, "target", decision.Target)
}
