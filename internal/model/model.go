package model

import (
	"fmt"
	"time"
)

// ValidationError reports a directory or token row that failed schema
// validation after scanning.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the invariants a directory row must satisfy before it is
// handed to the rest of the system.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return &ValidationError{Field: "id", Reason: "must be positive"}
	}
	if u.Username == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if u.PasswordHash == "" {
		return &ValidationError{Field: "password_hash", Reason: "must not be empty"}
	}
	return nil
}

// AuthToken is one outstanding remember-me grant. SecretHash is the bcrypt
// hash of the raw secret; the raw value lives only in the client's cookie.
type AuthToken struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	SecretHash string    `json:"-"`
	Device     string    `json:"device"`
	CreatedAt  time.Time `json:"created_at"`
}

func (t *AuthToken) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if t.UserID <= 0 {
		return &ValidationError{Field: "user_id", Reason: "must be positive"}
	}
	if t.SecretHash == "" {
		return &ValidationError{Field: "secret_hash", Reason: "must not be empty"}
	}
	return nil
}

// Session is one server-side session row. Data holds the key-value pairs the
// authentication engine reads and writes.
type Session struct {
	Token     string            `json:"token"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}
