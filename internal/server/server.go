package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rvale/gatehouse/internal/auth"
	"github.com/rvale/gatehouse/internal/config"
	"github.com/rvale/gatehouse/internal/handler"
	"github.com/rvale/gatehouse/internal/middleware"
	"github.com/rvale/gatehouse/internal/store"
)

type Server struct {
	db           *sql.DB
	engine       *auth.Engine
	userStore    *store.UserStore
	tokenStore   *store.TokenStore
	sessionStore *store.SessionStore
	authH        *handler.AuthHandler
	rateLimiter  *middleware.RateLimiter
	cfg          *config.Config
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	tokenStore := store.NewTokenStore(db)
	sessionStore := store.NewSessionStore(db, cfg.SessionTTL)

	codec := auth.NewCodec(cfg.BcryptCost)
	engine := auth.NewEngine(userStore, tokenStore, codec, auth.Config{
		TokenTTL: cfg.TokenTTL,
		Cookie: auth.CookieConfig{
			Name:     cfg.CookieName,
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			HttpOnly: cfg.CookieHTTPOnly,
		},
		ProtectedRoutes: cfg.ProtectedRoutes,
	}, logger.With("component", "auth"))

	return &Server{
		db:           db,
		engine:       engine,
		userStore:    userStore,
		tokenStore:   tokenStore,
		sessionStore: sessionStore,
		authH:        handler.NewAuthHandler(engine, userStore, tokenStore, sessionStore, cfg.SessionCookieName, logger.With("component", "auth_handler")),
		rateLimiter:  middleware.NewRateLimiter(),
		cfg:          cfg,
		logger:       logger,
	}
}

// Engine returns the authentication engine for maintenance tasks.
func (s *Server) Engine() *auth.Engine {
	return s.engine
}

// TokenStore returns the token store for maintenance tasks.
func (s *Server) TokenStore() *store.TokenStore {
	return s.tokenStore
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// UserStore returns the user store for bootstrap tasks.
func (s *Server) UserStore() *store.UserStore {
	return s.userStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("POST /login", s.rateLimited(http.HandlerFunc(s.authH.Login)))

	// Each named route is gated only if configuration marks it protected.
	s.handle(mux, "POST /logout", "logout", http.HandlerFunc(s.authH.Logout))
	s.handle(mux, "GET /me", "me", http.HandlerFunc(s.authH.Me))
	s.handle(mux, "GET /api/tokens", "tokens", http.HandlerFunc(s.authH.ListTokens))
	s.handle(mux, "DELETE /api/tokens/{id}", "tokens", http.HandlerFunc(s.authH.RevokeToken))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

// handle registers h under pattern, wrapping it with RequireAuth when the
// route name needs authentication.
func (s *Server) handle(mux *http.ServeMux, pattern, routeName string, h http.Handler) {
	if s.engine.RouteNeedsAuthentication(routeName) {
		authMW := middleware.RequireAuth(s.engine, s.sessionStore, s.cfg.SessionCookieName, s.cfg.CookieName, s.logger.With("component", "auth_middleware"))
		h = authMW(h)
	}
	mux.Handle(pattern, h)
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
