package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rvale/gatehouse/internal/auth"
	"github.com/rvale/gatehouse/internal/database"
	"github.com/rvale/gatehouse/internal/store"
)

const (
	testSessionCookie  = "gh_session"
	testRememberCookie = "gh_remember"
)

func setupAuthMiddleware(t *testing.T) (*auth.Engine, *store.SessionStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	userStore := store.NewUserStore(db)
	tokenStore := store.NewTokenStore(db)
	sessionStore := store.NewSessionStore(db, time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := auth.NewEngine(userStore, tokenStore, auth.NewCodec(bcrypt.MinCost), auth.Config{
		TokenTTL: time.Hour,
		Cookie:   auth.CookieConfig{Name: testRememberCookie, HttpOnly: true},
	}, logger)
	return engine, sessionStore, userStore
}

func createTestUser(t *testing.T, us *store.UserStore, username, password string, isAdmin bool) int64 {
	t.Helper()
	hash, err := auth.NewCodec(bcrypt.MinCost).Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := us.Create(username, "", hash, isAdmin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func requireAuth(engine *auth.Engine, sessions *store.SessionStore) func(http.Handler) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return RequireAuth(engine, sessions, testSessionCookie, testRememberCookie, logger)
}

func TestRequireAuthUnauthenticated(t *testing.T) {
	engine, sessions, _ := setupAuthMiddleware(t)

	handler := requireAuth(engine, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	engine, sessions, users := setupAuthMiddleware(t)
	createTestUser(t, users, "alice", "hunter2", true)

	// Authenticate a session directly through the engine.
	row, err := sessions.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	ok, _, err := engine.Attempt(sessions.Bind(row), "alice", "hunter2", false, "")
	if err != nil || !ok {
		t.Fatalf("attempt: ok=%v err=%v", ok, err)
	}

	var gotAC auth.AuthContext
	handler := requireAuth(engine, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testSessionCookie, Value: row.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.Username != "alice" {
		t.Errorf("Username = %q, want %q", gotAC.Username, "alice")
	}
	if !gotAC.IsAdmin {
		t.Error("expected IsAdmin = true")
	}
}

func TestRequireAuthResurrectsFromRememberCookie(t *testing.T) {
	engine, sessions, users := setupAuthMiddleware(t)
	userID := createTestUser(t, users, "alice", "hunter2", false)

	// Mint a remember token, then forget the session entirely.
	row, err := sessions.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	bound := sessions.Bind(row)
	ok, directive, err := engine.Attempt(bound, "alice", "hunter2", true, "")
	if err != nil || !ok {
		t.Fatalf("attempt: ok=%v err=%v", ok, err)
	}
	if err := bound.Destroy(); err != nil {
		t.Fatalf("destroy session: %v", err)
	}

	var gotUserID int64
	handler := requireAuth(engine, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = auth.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testRememberCookie, Value: directive.Value})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != userID {
		t.Errorf("UserID = %d, want %d", gotUserID, userID)
	}
}

func TestRequireAuthStaleRememberCookie(t *testing.T) {
	engine, sessions, _ := setupAuthMiddleware(t)

	handler := requireAuth(engine, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testRememberCookie, Value: "garbage"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithAuth(httptest.NewRequest("GET", "/", nil).Context(), auth.AuthContext{IsAdmin: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithAuth(httptest.NewRequest("GET", "/", nil).Context(), auth.AuthContext{IsAdmin: false})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
