package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rvale/gatehouse/internal/auth"
	"github.com/rvale/gatehouse/internal/model"
	"github.com/rvale/gatehouse/internal/store"
)

// RequireAuth resolves the server-side session, lets the engine attempt
// cookie resurrection, and populates AuthContext for the wrapped handler.
// Unauthenticated requests get a 401. A session row is created on demand so
// resurrection has somewhere to land on a fresh browser.
func RequireAuth(engine *auth.Engine, sessions *store.SessionStore, sessionCookie, rememberCookie string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			row, err := loadOrCreateSession(w, r, sessions, sessionCookie)
			if err != nil {
				logger.Error("load session", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			sess := sessions.Bind(row)

			remember := ""
			if c, err := r.Cookie(rememberCookie); err == nil {
				remember = c.Value
			}

			ok, directive, err := engine.Check(sess, remember)
			if directive != nil {
				directive.Apply(w)
			}
			if err != nil {
				logger.Error("auth check", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			user, err := engine.User(sess)
			if err != nil {
				logger.Error("auth user", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := auth.WithAuth(r.Context(), auth.AuthContext{
				UserID:   user.ID,
				Username: user.Username,
				IsAdmin:  user.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks the administrator flag set by RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loadOrCreateSession fetches the session named by the cookie, creating a new
// row (and setting the cookie) when the cookie is absent, stale, or expired.
func loadOrCreateSession(w http.ResponseWriter, r *http.Request, sessions *store.SessionStore, cookieName string) (*model.Session, error) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		row, err := sessions.GetByToken(c.Value)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}

	row, err := sessions.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    row.Token,
		Path:     "/",
		HttpOnly: true,
	})
	return row, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
