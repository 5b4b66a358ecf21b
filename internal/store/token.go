package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rvale/gatehouse/internal/model"
)

// TokenStore persists remember-me tokens in SQLite.
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func scanToken(scanner interface{ Scan(...any) error }) (*model.AuthToken, error) {
	var t model.AuthToken
	err := scanner.Scan(&t.ID, &t.UserID, &t.SecretHash, &t.Device, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

const tokenCols = `id, user_id, secret_hash, device, created_at`

func (s *TokenStore) Insert(t *model.AuthToken) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO auth_tokens (id, user_id, secret_hash, device, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.SecretHash, t.Device, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auth token: %w", err)
	}
	return nil
}

// ListByUsername returns every token belonging to the named user, in
// unspecified order. Callers must not assume recency ordering.
func (s *TokenStore) ListByUsername(username string) ([]model.AuthToken, error) {
	rows, err := s.db.Query(
		`SELECT t.id, t.user_id, t.secret_hash, t.device, t.created_at
		 FROM auth_tokens t
		 JOIN users u ON u.id = t.user_id
		 WHERE u.username = ?`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list auth tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.AuthToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auth token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auth tokens: %w", err)
	}
	return tokens, nil
}

// ListByUserID returns the user's tokens newest first, for device listings.
func (s *TokenStore) ListByUserID(userID int64) ([]model.AuthToken, error) {
	rows, err := s.db.Query(
		`SELECT `+tokenCols+` FROM auth_tokens WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list auth tokens by user: %w", err)
	}
	defer rows.Close()

	var tokens []model.AuthToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auth token: %w", err)
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auth tokens by user: %w", err)
	}
	return tokens, nil
}

// DeleteByID removes one token. Deleting an absent row is not an error.
func (s *TokenStore) DeleteByID(id string) error {
	_, err := s.db.Exec(`DELETE FROM auth_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete auth token: %w", err)
	}
	return nil
}

// DeleteOlderThan removes every token created before the cutoff.
func (s *TokenStore) DeleteOlderThan(cutoff time.Time) error {
	_, err := s.db.Exec(`DELETE FROM auth_tokens WHERE created_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired auth tokens: %w", err)
	}
	return nil
}
