package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const secretBytes = 32

// Codec generates remember-me secrets and handles the one-way hashing used
// for both passwords and token secrets. bcrypt is self-salting, so hashing
// the same input twice yields different outputs, and comparison is
// constant-time.
type Codec struct {
	cost int
}

// NewCodec returns a codec hashing at the given bcrypt cost. Costs outside
// bcrypt's valid range fall back to the default cost.
func NewCodec(cost int) *Codec {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Codec{cost: cost}
}

// GenerateSecret returns a fresh 256-bit secret, hex-encoded. The caller gets
// the raw value exactly once; only its hash is ever persisted.
func (c *Codec) GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (c *Codec) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether secret matches hash. It never distinguishes a
// corrupt hash from a mismatch.
func (c *Codec) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// NeedsRehash reports whether a stored hash was produced with parameters
// other than the codec's current cost, enabling lazy migration on login.
func (c *Codec) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != c.cost
}
