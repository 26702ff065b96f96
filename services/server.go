package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/qforge/qbank/models"
	"github.com/qforge/qbank/repository"
	ws "github.com/qforge/qbank/websocket"
)

// Server holds all server dependencies
type Server struct {
	config *Config
	repo   *repository.Repository
	policy RoutePolicy

	broker            *EventBroker
	authService       *AuthService
	authEndpoints     *AuthEndpoints
	sessionEndpoints  *SessionEndpoints
	templateEndpoints *TemplateEndpoints
	paperEndpoints    *PaperEndpoints

	programEndpoints   *EntityEndpoints[models.Program]
	courseEndpoints    *EntityEndpoints[models.Course]
	subjectEndpoints   *EntityEndpoints[models.Subject]
	questionEndpoints  *EntityEndpoints[models.Question]
	candidateEndpoints *EntityEndpoints[models.Candidate]
	classroomEndpoints *EntityEndpoints[models.Classroom]
	examEndpoints      *EntityEndpoints[models.Exam]

	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		policy: config.RoutePolicy(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the database connection
func (s *Server) SetDatabase(repo *repository.Repository) {
	s.repo = repo
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	s.broker = NewEventBroker()

	if s.config.JWT.Secret != "" && s.repo != nil {
		s.authService = NewAuthService(s.repo, s.broker, s.config.JWT.Secret)
		s.authEndpoints = NewAuthEndpoints(s.authService)
		s.sessionEndpoints = NewSessionEndpoints(s.authService, s.repo, s.config.Session, s.policy)
		slog.Info("Authentication service initialized")
	} else {
		slog.Warn("JWT secret or database missing, auth endpoints disabled")
	}

	if s.repo != nil {
		s.templateEndpoints = NewTemplateEndpoints(s.repo)
		s.paperEndpoints = NewPaperEndpoints(s.repo)

		s.programEndpoints = NewEntityEndpoints[models.Program](s.repo, "programs", "name",
			[]string{"name", "created_at"}, []string{"name"},
			[]string{"name", "description"})
		s.courseEndpoints = NewEntityEndpoints[models.Course](s.repo, "courses", "name",
			[]string{"name", "created_at"}, []string{"name", "program_id"},
			[]string{"name", "description", "program_id"}, "Program")
		s.subjectEndpoints = NewEntityEndpoints[models.Subject](s.repo, "subjects", "name",
			[]string{"name", "code", "created_at"}, []string{"name", "code", "course_id"},
			[]string{"name", "code", "course_id"}, "Course")
		s.questionEndpoints = NewEntityEndpoints[models.Question](s.repo, "questions", "created_at",
			[]string{"created_at", "marks", "difficulty"}, []string{"subject_id", "type", "difficulty"},
			[]string{"text", "type", "options", "answer", "marks", "difficulty", "subject_id"}, "Subject")
		s.candidateEndpoints = NewEntityEndpoints[models.Candidate](s.repo, "candidates", "full_name",
			[]string{"full_name", "roll_number", "created_at"}, []string{"classroom_id", "email"},
			[]string{"full_name", "email", "roll_number", "classroom_id"}, "Classroom")
		s.classroomEndpoints = NewEntityEndpoints[models.Classroom](s.repo, "classrooms", "name",
			[]string{"name", "created_at"}, []string{"program_id", "trainer_id"},
			[]string{"name", "program_id", "trainer_id"}, "Program")
		s.examEndpoints = NewEntityEndpoints[models.Exam](s.repo, "exams", "scheduled_at",
			[]string{"scheduled_at", "title", "created_at"}, []string{"classroom_id", "subject_id", "status"},
			[]string{"title", "subject_id", "classroom_id", "paper_id", "scheduled_at", "duration_minutes", "status"},
			"Subject", "Classroom")
		slog.Info("Entity endpoints initialized")
	}

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	return nil
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		// Authentication routes
		if s.authEndpoints != nil {
			r.Route("/auth", func(r chi.Router) {
				// Public auth routes (no middleware)
				r.Post("/login", s.authEndpoints.LoginHandler)
				r.Post("/signup", s.authEndpoints.SignupHandler)
				r.Post("/refresh", s.authEndpoints.RefreshHandler)

				// Protected auth routes (with middleware)
				r.Group(func(r chi.Router) {
					r.Use(s.authService.Middleware)
					r.Post("/logout", s.authEndpoints.LogoutHandler)
					r.Get("/me", s.authEndpoints.MeHandler)
				})
			})
		}

		// Session routes are public: anonymous callers resolve to an
		// anonymous snapshot rather than a 401.
		if s.sessionEndpoints != nil {
			s.sessionEndpoints.RegisterRoutes(r)
		}

		if s.authService != nil {
			// WebSocket route (protected)
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Get("/ws", s.websocketHandlerFunc)
			})

			// Read routes: any authenticated user
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				s.registerReadRoutes(r)
			})

			// Write routes: admins and trainers only
			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)
				r.Use(s.authService.RequireRole(models.RoleAdmin, models.RoleTrainer))
				s.registerWriteRoutes(r)
			})
		}
	})

	return r
}

func (s *Server) registerReadRoutes(r chi.Router) {
	if s.templateEndpoints != nil {
		s.templateEndpoints.RegisterReadRoutes(r)
		s.paperEndpoints.RegisterReadRoutes(r)
		s.programEndpoints.RegisterReadRoutes(r)
		s.courseEndpoints.RegisterReadRoutes(r)
		s.subjectEndpoints.RegisterReadRoutes(r)
		s.questionEndpoints.RegisterReadRoutes(r)
		s.candidateEndpoints.RegisterReadRoutes(r)
		s.classroomEndpoints.RegisterReadRoutes(r)
		s.examEndpoints.RegisterReadRoutes(r)
	}
}

func (s *Server) registerWriteRoutes(r chi.Router) {
	if s.templateEndpoints != nil {
		s.templateEndpoints.RegisterWriteRoutes(r)
		s.paperEndpoints.RegisterWriteRoutes(r)
		s.programEndpoints.RegisterWriteRoutes(r)
		s.courseEndpoints.RegisterWriteRoutes(r)
		s.subjectEndpoints.RegisterWriteRoutes(r)
		s.questionEndpoints.RegisterWriteRoutes(r)
		s.candidateEndpoints.RegisterWriteRoutes(r)
		s.classroomEndpoints.RegisterWriteRoutes(r)
		s.examEndpoints.RegisterWriteRoutes(r)
	}
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF
// attacks. An empty allow-list denies everything.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.repo != nil {
		if err := s.repo.Ping(r.Context()); err != nil {
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}`))
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"API v1","version":"1.0.0"}`))
}

// websocketHandlerFunc upgrades the connection and binds a per-connection
// session manager to it. The manager's startup check runs against the
// upgrading request's cookies; auth state changes then stream in through the
// event broker, and every settled snapshot plus any route decision for the
// client's reported path is pushed down the socket.
func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		slog.Error("WebSocket connection failed - user not found in context")
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID, "email", user.Email)

	client := s.wsHub.RegisterClient(conn, user.ID)
	if path := r.URL.Query().Get("path"); path != "" {
		client.SetPath(path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := s.broker.Subscribe()
	manager := NewSessionManager(s.authService.RequestChecker(r), s.repo, s.config.Session)
	snapshots := manager.Subscribe()
	// The broker stream is global; this manager only reacts to the bound
	// user's own sign-in/sign-out events.
	manager.Start(ctx, FilterEventsForUser(events, user.ID))

	client.MessageHandler = func(c *ws.Client, raw []byte) {
		var msg ws.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		if msg.Type == "navigate" {
			c.SetPath(msg.Path)
			s.pushDecision(c, manager.Snapshot())
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapshots:
				client.SendPush(ws.SessionPush{Type: "session", Session: snap})
				s.pushDecision(client, snap)
			}
		}
	}()

	go client.WritePump()
	client.ReadPump() // blocks until the connection closes

	cancel()
	s.broker.Unsubscribe(events)
}

func (s *Server) pushDecision(client *ws.Client, snap SessionSnapshot) {
	path := client.GetPath()
	if path == "" {
		return
	}
	decision := s.policy.Evaluate(snap, path)
	if !decision.Redirect {
		return
	}
	client.SendPush(ws.SessionPush{Type: "redirect", Redirect: true, Target: decision.Target})
}
