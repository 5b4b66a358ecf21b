package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateSecret(t *testing.T) {
	c := NewCodec(bcrypt.MinCost)

	s1, err := c.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if len(s1) != secretBytes*2 {
		t.Errorf("secret length = %d, want %d", len(s1), secretBytes*2)
	}

	s2, err := c.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if s1 == s2 {
		t.Error("two generated secrets should differ")
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	c := NewCodec(bcrypt.MinCost)

	hash, err := c.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the input")
	}
	if !c.Verify("correct horse battery staple", hash) {
		t.Error("verify should succeed for the original secret")
	}
	if c.Verify("wrong secret", hash) {
		t.Error("verify should fail for a different secret")
	}
}

func TestHashSelfSalting(t *testing.T) {
	c := NewCodec(bcrypt.MinCost)

	h1, err := c.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := c.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Error("hashing the same input twice should produce different outputs")
	}
	if !c.Verify("secret", h1) || !c.Verify("secret", h2) {
		t.Error("both hashes should verify against the original input")
	}
}

func TestNeedsRehash(t *testing.T) {
	old := NewCodec(bcrypt.MinCost)
	current := NewCodec(bcrypt.MinCost + 1)

	hash, err := old.Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !current.NeedsRehash(hash) {
		t.Error("hash at a lower cost should need rehashing")
	}
	if old.NeedsRehash(hash) {
		t.Error("hash at the current cost should not need rehashing")
	}
	if !current.NeedsRehash("not-a-bcrypt-hash") {
		t.Error("garbage hash should need rehashing")
	}
}

func TestNewCodecClampsCost(t *testing.T) {
	c := NewCodec(99)
	if c.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", c.cost, bcrypt.DefaultCost)
	}

	c = NewCodec(0)
	if c.cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", c.cost, bcrypt.DefaultCost)
	}
}
