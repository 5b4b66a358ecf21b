package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rvale/gatehouse/internal/auth"
	"github.com/rvale/gatehouse/internal/model"
)

// SessionStore keeps server-side sessions in SQLite. Each row holds an opaque
// crypto-random token and a JSON bag of key-value state.
type SessionStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewSessionStore(db *sql.DB, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, ttl: ttl}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	var data string
	err := scanner.Scan(&sess.Token, &data, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &sess.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	if sess.Data == nil {
		sess.Data = make(map[string]string)
	}
	return &sess, nil
}

const sessionCols = `token, data, created_at, expires_at`

// Create starts a new empty session with a crypto-random token.
func (s *SessionStore) Create() (*model.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(s.ttl)

	_, err := s.db.Exec(
		`INSERT INTO sessions (token, data, expires_at) VALUES (?, '{}', ?)`,
		token, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE token = ?`, token)
	return scanSession(row)
}

// GetByToken returns the session for the token, or nil if expired or absent.
func (s *SessionStore) GetByToken(token string) (*model.Session, error) {
	row := s.db.QueryRow(
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > datetime('now')`,
		token,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *SessionStore) save(sess *model.Session) error {
	data, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET data = ? WHERE token = ?`, string(data), sess.Token)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Bind wraps a session row in the key-value view the authentication engine
// consumes. Reads come from the loaded row; writes go through to the store.
func (s *SessionStore) Bind(sess *model.Session) auth.Session {
	return &boundSession{store: s, row: sess}
}

type boundSession struct {
	store *SessionStore
	row   *model.Session
}

func (b *boundSession) Get(key string) (string, bool) {
	v, ok := b.row.Data[key]
	return v, ok
}

func (b *boundSession) Set(key, value string) error {
	b.row.Data[key] = value
	return b.store.save(b.row)
}

func (b *boundSession) Exists(key string) bool {
	_, ok := b.row.Data[key]
	return ok
}

func (b *boundSession) Destroy() error {
	b.row.Data = make(map[string]string)
	return b.store.Delete(b.row.Token)
}
