package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rvale/gatehouse/internal/auth"
	"github.com/rvale/gatehouse/internal/model"
	"github.com/rvale/gatehouse/internal/store"
)

type AuthHandler struct {
	engine        *auth.Engine
	users         *store.UserStore
	tokens        *store.TokenStore
	sessions      *store.SessionStore
	sessionCookie string
	logger        *slog.Logger
}

func NewAuthHandler(
	engine *auth.Engine,
	us *store.UserStore,
	ts *store.TokenStore,
	ss *store.SessionStore,
	sessionCookie string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		engine:        engine,
		users:         us,
		tokens:        ts,
		sessions:      ss,
		sessionCookie: sessionCookie,
		logger:        logger,
	}
}

// Login authenticates a username/password pair. On success the session is
// bound to the user and, when remember_me was requested, the response carries
// the remember cookie minted for this device.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	row, err := h.resolveSession(w, r)
	if err != nil {
		h.logger.Error("resolve session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	sess := h.sessions.Bind(row)

	ok, directive, err := h.engine.Attempt(sess, req.Username, req.Password, req.RememberMe, r.UserAgent())
	if err != nil {
		h.logger.Error("login attempt", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		// Unknown user and wrong password are indistinguishable on purpose.
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if directive != nil {
		directive.Apply(w)
	}

	user, err := h.engine.User(sess)
	if err != nil {
		h.logger.Error("login user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout revokes the active remember-me token, destroys the session, and
// expires both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.sessionCookie); err == nil && c.Value != "" {
		row, err := h.sessions.GetByToken(c.Value)
		if err != nil {
			h.logger.Error("logout session", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if row != nil {
			directive, err := h.engine.Logout(h.sessions.Bind(row))
			if directive != nil {
				directive.Apply(w)
			}
			if err != nil {
				h.logger.Error("logout", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
				return
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("me lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListTokens returns the caller's outstanding remember-me tokens, newest
// first. Secret hashes are never serialized.
func (h *AuthHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.ListByUserID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list tokens", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if tokens == nil {
		tokens = []model.AuthToken{}
	}
	writeJSON(w, http.StatusOK, tokens)
}

// RevokeToken deletes one of the caller's tokens ("log out this device").
// Revoking an unknown or foreign token id returns 404.
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tokens, err := h.tokens.ListByUserID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("revoke token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	owned := false
	for i := range tokens {
		if tokens[i].ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "token not found"})
		return
	}

	if err := h.engine.InvalidateToken(id); err != nil {
		h.logger.Error("revoke token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveSession returns the request's session row, creating one (and
// setting the session cookie) when absent or expired.
func (h *AuthHandler) resolveSession(w http.ResponseWriter, r *http.Request) (*model.Session, error) {
	if c, err := r.Cookie(h.sessionCookie); err == nil && c.Value != "" {
		row, err := h.sessions.GetByToken(c.Value)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}

	row, err := h.sessions.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookie,
		Value:    row.Token,
		Path:     "/",
		HttpOnly: true,
	})
	return row, nil
}
