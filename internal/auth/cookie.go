package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
)

// ErrMalformedCookie marks a remember-cookie value that does not decode into
// a username/secret pair. Callers treat it the same as a missing cookie.
var ErrMalformedCookie = errors.New("malformed remember cookie")

// RememberCookie is the client-held half of a remember-me token: the username
// to scan under and the raw, pre-hash secret.
type RememberCookie struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

// EncodeRememberCookie serializes the pair as base64url-encoded JSON so the
// value is safe in a Set-Cookie header.
func EncodeRememberCookie(rc RememberCookie) (string, error) {
	payload, err := json.Marshal(rc)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeRememberCookie parses a cookie value produced by EncodeRememberCookie.
// Any failure, including empty fields, returns ErrMalformedCookie.
func DecodeRememberCookie(value string) (*RememberCookie, error) {
	payload, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrMalformedCookie
	}
	var rc RememberCookie
	if err := json.Unmarshal(payload, &rc); err != nil {
		return nil, ErrMalformedCookie
	}
	if rc.Username == "" || rc.Secret == "" {
		return nil, ErrMalformedCookie
	}
	return &rc, nil
}

// SetCookie is an outbound cookie directive. The engine never touches the
// response directly; it returns one of these and the transport applies it.
type SetCookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	MaxAge   int
	Secure   bool
	HttpOnly bool
}

// Apply writes the directive onto an HTTP response.
func (sc *SetCookie) Apply(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sc.Name,
		Value:    sc.Value,
		Domain:   sc.Domain,
		Path:     sc.Path,
		MaxAge:   sc.MaxAge,
		Secure:   sc.Secure,
		HttpOnly: sc.HttpOnly,
	})
}
