package store

import (
	"testing"
	"time"
)

func TestSessionCreateAndGet(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t), time.Hour)

	sess, err := ss.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if len(sess.Data) != 0 {
		t.Errorf("data = %v, want empty", sess.Data)
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.Token != sess.Token {
		t.Errorf("token = %q, want %q", got.Token, sess.Token)
	}
}

func TestSessionGetUnknownToken(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t), time.Hour)

	got, err := ss.GetByToken("nope")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionGetExpired(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t), -time.Hour)

	sess, err := ss.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil for expired session")
	}
}

func TestBoundSessionSetPersists(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t), time.Hour)

	sess, err := ss.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	bound := ss.Bind(sess)

	if err := bound.Set("user_id", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok := bound.Get("user_id"); !ok || v != "42" {
		t.Errorf("get = %q/%v, want 42/true", v, ok)
	}
	if !bound.Exists("user_id") {
		t.Error("expected key to exist")
	}

	// Fresh fetch sees the write.
	reloaded, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if reloaded.Data["user_id"] != "42" {
		t.Errorf("persisted user_id = %q, want %q", reloaded.Data["user_id"], "42")
	}
}

func TestBoundSessionDestroy(t *testing.T) {
	ss := NewSessionStore(setupTestDB(t), time.Hour)

	sess, err := ss.Create()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	bound := ss.Bind(sess)
	if err := bound.Set("user_id", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := bound.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if bound.Exists("user_id") {
		t.Error("destroyed session should hold no state")
	}

	got, err := ss.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expected nil after destroy")
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	expired := NewSessionStore(db, -time.Hour)
	active := NewSessionStore(db, time.Hour)

	if _, err := expired.Create(); err != nil {
		t.Fatalf("create expired session: %v", err)
	}
	keep, err := active.Create()
	if err != nil {
		t.Fatalf("create active session: %v", err)
	}

	n, err := active.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	got, err := active.GetByToken(keep.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil {
		t.Error("active session should survive cleanup")
	}
}
