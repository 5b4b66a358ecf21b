package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rvale/gatehouse/internal/model"
)

// Session keys the engine reads and writes.
const (
	KeyUserID  = "user_id"
	KeyTokenID = "authentication_token_id"
)

// ErrNotAuthenticated is returned by user-scoped accessors when the session
// holds no authenticated user. Callers must establish authentication via
// Check or Attempt first.
var ErrNotAuthenticated = errors.New("not authenticated")

// UserDirectory is the external credential directory. Implementations must
// scope UpdatePasswordHash to exactly the given user id.
type UserDirectory interface {
	FindByUsername(username string) (*model.User, error)
	FindByID(id int64) (*model.User, error)
	UpdatePasswordHash(id int64, hash string) error
}

// TokenStore persists outstanding remember-me tokens.
type TokenStore interface {
	Insert(t *model.AuthToken) error
	ListByUsername(username string) ([]model.AuthToken, error)
	DeleteByID(id string) error
	DeleteOlderThan(cutoff time.Time) error
}

// Session is one request's server-side session. Get and Exists read state
// loaded when the session was fetched; Set and Destroy write through to the
// backing store.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Exists(key string) bool
	Destroy() error
}

// CookieConfig describes the remember-cookie attributes. The clear directive
// issued on logout mirrors them exactly; a mismatch would leave the cookie
// in the browser.
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	HttpOnly bool
}

type Config struct {
	// TokenTTL is the rolling expiry window for remember-me tokens. It also
	// bounds how many live tokens a username can accumulate, which bounds the
	// per-request cost of the resurrection scan.
	TokenTTL time.Duration
	Cookie   CookieConfig
	// ProtectedRoutes lists route names that require authentication.
	ProtectedRoutes []string
}

// Engine orchestrates credential checks, remember-me token issuance, cookie
// resurrection, expiry sweeps, and logout. It is stateless across requests;
// all durable state lives in the directory, token store, and session.
type Engine struct {
	users     UserDirectory
	tokens    TokenStore
	codec     *Codec
	cfg       Config
	protected map[string]struct{}
	dummyHash string
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(users UserDirectory, tokens TokenStore, codec *Codec, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = "/"
	}
	protected := make(map[string]struct{}, len(cfg.ProtectedRoutes))
	for _, name := range cfg.ProtectedRoutes {
		protected[name] = struct{}{}
	}

	// Hashed once up front so a lookup miss in Attempt still pays for a full
	// verify, keeping response timing roughly constant whether or not the
	// username exists.
	dummyHash, err := codec.Hash("gatehouse.dummy")
	if err != nil {
		logger.Warn("dummy hash unavailable", "error", err)
	}

	return &Engine{
		users:     users,
		tokens:    tokens,
		codec:     codec,
		cfg:       cfg,
		protected: protected,
		dummyHash: dummyHash,
		logger:    logger,
		now:       time.Now,
	}
}

// Attempt verifies the username/password pair and authenticates the session
// on success. Unknown users and wrong passwords are deliberately
// indistinguishable: both return false with no error. With rememberMe set, a
// new token is minted and the returned directive carries the remember cookie;
// device is a free-text descriptor stored for audit only.
//
// Directory or storage failures propagate as errors and never authenticate.
func (e *Engine) Attempt(sess Session, username, password string, rememberMe bool, device string) (bool, *SetCookie, error) {
	user, err := e.users.FindByUsername(username)
	if err != nil {
		return false, nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		e.codec.Verify(password, e.dummyHash)
		return false, nil, nil
	}

	if !e.codec.Verify(password, user.PasswordHash) {
		return false, nil, nil
	}

	if err := sess.Set(KeyUserID, strconv.FormatInt(user.ID, 10)); err != nil {
		return false, nil, fmt.Errorf("set session user: %w", err)
	}

	if e.codec.NeedsRehash(user.PasswordHash) {
		e.rehashPassword(user, password)
	}

	var directive *SetCookie
	if rememberMe {
		directive, err = e.mint(sess, user, device)
		if err != nil {
			return false, nil, err
		}
	}

	return true, directive, nil
}

// rehashPassword upgrades a stale password hash to current cost parameters.
// Best effort: a failure is logged and the login proceeds.
func (e *Engine) rehashPassword(user *model.User, password string) {
	hash, err := e.codec.Hash(password)
	if err != nil {
		e.logger.Warn("password rehash", "user_id", user.ID, "error", err)
		return
	}
	if err := e.users.UpdatePasswordHash(user.ID, hash); err != nil {
		e.logger.Warn("password rehash", "user_id", user.ID, "error", err)
	}
}

// mint creates a new remember-me token for the user and returns the cookie
// directive carrying the raw secret. The secret is embedded in the directive
// exactly once and is never retrievable again.
func (e *Engine) mint(sess Session, user *model.User, device string) (*SetCookie, error) {
	secret, err := e.codec.GenerateSecret()
	if err != nil {
		return nil, err
	}
	hash, err := e.codec.Hash(secret)
	if err != nil {
		return nil, err
	}

	token := &model.AuthToken{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		SecretHash: hash,
		Device:     device,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.tokens.Insert(token); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	if err := sess.Set(KeyTokenID, token.ID); err != nil {
		return nil, fmt.Errorf("set session token: %w", err)
	}

	value, err := EncodeRememberCookie(RememberCookie{Username: user.Username, Secret: secret})
	if err != nil {
		return nil, fmt.Errorf("encode remember cookie: %w", err)
	}

	sc := e.newCookie()
	sc.Value = value
	sc.MaxAge = int(e.cfg.TokenTTL.Seconds())
	return sc, nil
}

// Check reports whether the session holds an authenticated user, attempting
// cookie resurrection first when it does not. rememberCookie is the inbound
// remember-cookie value, empty if absent. A session whose user no longer
// exists is force-logged-out; the returned directive, when non-nil, clears
// the remember cookie.
func (e *Engine) Check(sess Session, rememberCookie string) (bool, *SetCookie, error) {
	if !sess.Exists(KeyUserID) {
		if err := e.resurrect(sess, rememberCookie); err != nil {
			return false, nil, err
		}
	}

	if raw, ok := sess.Get(KeyUserID); ok {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Unparseable session state is treated as stale.
			userID = 0
		}
		user, err := e.users.FindByID(userID)
		if err != nil {
			return false, nil, fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			// Stale session surviving account deletion. Token rows for the
			// vanished user are left for the orphan reaper.
			if err := sess.Destroy(); err != nil {
				return false, nil, fmt.Errorf("destroy session: %w", err)
			}
			return false, e.clearCookie(), nil
		}
	}

	return sess.Exists(KeyUserID), nil, nil
}

// resurrect re-establishes a session from the remember cookie. The expiry
// sweep runs first, unconditionally, so an expired secret can never match.
// A missing or malformed cookie leaves the session untouched.
func (e *Engine) resurrect(sess Session, rememberCookie string) error {
	if err := e.InvalidateExpiredTokens(); err != nil {
		return err
	}

	if rememberCookie == "" {
		return nil
	}
	rc, err := DecodeRememberCookie(rememberCookie)
	if err != nil {
		return nil
	}

	// Secrets are stored hashed, so there is no keyed fetch: scan every live
	// token for the username and verify each. First match wins.
	tokens, err := e.tokens.ListByUsername(rc.Username)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}
	for i := range tokens {
		if !e.codec.Verify(rc.Secret, tokens[i].SecretHash) {
			continue
		}
		if err := sess.Set(KeyUserID, strconv.FormatInt(tokens[i].UserID, 10)); err != nil {
			return fmt.Errorf("set session user: %w", err)
		}
		if err := sess.Set(KeyTokenID, tokens[i].ID); err != nil {
			return fmt.Errorf("set session token: %w", err)
		}
		break
	}
	return nil
}

// User returns the currently authenticated user, or ErrNotAuthenticated.
func (e *Engine) User(sess Session) (*model.User, error) {
	raw, ok := sess.Get(KeyUserID)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	user, err := e.users.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// IsAdmin reports the authenticated user's administrator flag. Calling it on
// an unauthenticated session is a contract violation and returns
// ErrNotAuthenticated rather than a silent "not admin".
func (e *Engine) IsAdmin(sess Session) (bool, error) {
	user, err := e.User(sess)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// InvalidateExpiredTokens deletes every token older than the TTL window.
func (e *Engine) InvalidateExpiredTokens() error {
	cutoff := e.now().UTC().Add(-e.cfg.TokenTTL)
	if err := e.tokens.DeleteOlderThan(cutoff); err != nil {
		return fmt.Errorf("invalidate expired tokens: %w", err)
	}
	return nil
}

// InvalidateToken revokes a single token ("log out this device"). Idempotent.
func (e *Engine) InvalidateToken(tokenID string) error {
	if err := e.tokens.DeleteByID(tokenID); err != nil {
		return fmt.Errorf("invalidate token: %w", err)
	}
	return nil
}

// Logout revokes the session's active remember-me token, destroys the
// session, and returns the directive clearing the remember cookie. The
// directive is returned even when destruction fails so the transport can
// still expire the cookie client-side.
func (e *Engine) Logout(sess Session) (*SetCookie, error) {
	if tokenID, ok := sess.Get(KeyTokenID); ok {
		if err := e.tokens.DeleteByID(tokenID); err != nil {
			return e.clearCookie(), fmt.Errorf("revoke active token: %w", err)
		}
	}
	if err := sess.Destroy(); err != nil {
		return e.clearCookie(), fmt.Errorf("destroy session: %w", err)
	}
	return e.clearCookie(), nil
}

// RouteNeedsAuthentication reports whether the named route is configured to
// require an authenticated user.
func (e *Engine) RouteNeedsAuthentication(routeName string) bool {
	_, ok := e.protected[routeName]
	return ok
}

func (e *Engine) newCookie() *SetCookie {
	return &SetCookie{
		Name:     e.cfg.Cookie.Name,
		Domain:   e.cfg.Cookie.Domain,
		Path:     e.cfg.Cookie.Path,
		Secure:   e.cfg.Cookie.Secure,
		HttpOnly: e.cfg.Cookie.HttpOnly,
	}
}

// clearCookie mirrors the configured attributes with an expired max-age;
// browsers only delete a cookie when the attributes match.
func (e *Engine) clearCookie() *SetCookie {
	sc := e.newCookie()
	sc.Value = ""
	sc.MaxAge = -1
	return sc
}
