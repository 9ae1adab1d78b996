package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rdouglass/quicknotes/internal/email"
	"github.com/rdouglass/quicknotes/internal/handler"
	"github.com/rdouglass/quicknotes/internal/identity"
	"github.com/rdouglass/quicknotes/internal/metrics"
	"github.com/rdouglass/quicknotes/internal/middleware"
	"github.com/rdouglass/quicknotes/internal/model"
	"github.com/rdouglass/quicknotes/internal/store"
	ws "github.com/rdouglass/quicknotes/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	provider     *identity.Service
	sessionStore *store.SessionStore
	collector    *metrics.Collector
	registry     *prometheus.Registry
	authH        *handler.AuthHandler
	noteH        *handler.NoteHandler
	profileH     *handler.ProfileHandler
	pageH        *handler.PageHandler
	rateLimiter  *middleware.RateLimiter
	unsubscribe  func()
	logger       *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	noteStore := store.NewNoteStore(db)

	provider := identity.NewService(userStore, sessionStore, emailClient, logger.With("component", "identity"))

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Forward auth-state changes to the owner's open tabs. Sign-out events
	// carry no session, so there is no user to notify.
	unsubscribe := provider.OnAuthStateChange(func(event identity.Event, sess *model.Session) {
		if sess == nil {
			return
		}
		switch event {
		case identity.EventSignedIn:
			hub.Publish(sess.UserID, ws.AuthEvent(ws.EventSignedIn))
		case identity.EventSignedOut:
			hub.Publish(sess.UserID, ws.AuthEvent(ws.EventSignedOut))
		case identity.EventTokenRefreshed:
			hub.Publish(sess.UserID, ws.AuthEvent(ws.EventTokenRefreshed))
		}
	})

	return &Server{
		db:           db,
		hub:          hub,
		provider:     provider,
		sessionStore: sessionStore,
		collector:    collector,
		registry:     registry,
		authH:        handler.NewAuthHandler(provider, collector, logger.With("component", "auth")),
		noteH:        handler.NewNoteHandler(noteStore, hub, collector, logger.With("component", "note")),
		profileH:     handler.NewProfileHandler(provider, logger.With("component", "profile")),
		pageH:        handler.NewPageHandler(logger.With("component", "page")),
		rateLimiter:  middleware.NewRateLimiter(),
		unsubscribe:  unsubscribe,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Provider returns the identity provider.
func (s *Server) Provider() *identity.Service {
	return s.provider
}

// Close drops the server's auth-state subscription.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Router builds the HTTP handler. Every request passes through the route
// guard, which classifies the path and re-derives the session from the
// request's cookie before the handlers run.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public pages
	mux.HandleFunc("GET /{$}", s.pageH.Home)
	mux.HandleFunc("GET /login", s.authH.LoginPage)
	mux.HandleFunc("GET /signup", s.authH.SignupPage)
	mux.HandleFunc("POST /signup", s.rateLimitedHandler(s.authH.Signup))
	mux.HandleFunc("GET /auth/confirm", s.authH.Confirm)

	// Session endpoints
	mux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/logout", s.authH.Logout)

	// Protected pages — the route guard turns away anonymous visitors
	mux.HandleFunc("GET /dashboard", s.noteH.Dashboard)
	mux.HandleFunc("GET /profile", s.profileH.Profile)
	mux.HandleFunc("POST /notes", s.noteH.NoteCreate)

	// Notes API
	mux.HandleFunc("GET /api/notes", s.noteH.APIList)
	mux.HandleFunc("POST /api/notes", s.noteH.APICreate)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler(s.registry))

	guard := middleware.RouteGuard(s.provider, s.collector, s.logger.With("component", "guard"))
	return middleware.RequestLogger(s.logger.With("component", "http"))(guard(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
