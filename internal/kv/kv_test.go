package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// exercise runs the same contract checks against every backend.
func exercise(t *testing.T, store KV) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Put(ctx, "aiagent-conversations", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "aiagent-conversations", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err := store.Get(ctx, "aiagent-conversations")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Fatalf("unexpected value: %s", got)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exercise(t, m)
	if m.Puts() != 2 {
		t.Fatalf("expected 2 puts, got %d", m.Puts())
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	_ = m.Put(context.Background(), "k", buf)
	buf[0] = 'x'
	got, _ := m.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %s", got)
	}
}

func TestBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.bolt")
	b, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	exercise(t, b)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "aiagent-conversations")
	if err != nil || string(got) != `{"a":2}` {
		t.Fatalf("value not persisted: %q %v", got, err)
	}
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()
	exercise(t, s)
}

func TestOpenBolt_LockedByAnotherHandle(t *testing.T) {
	prev := boltLockTimeout
	boltLockTimeout = 50 * time.Millisecond
	defer func() { boltLockTimeout = prev }()

	path := filepath.Join(t.TempDir(), "state.db")
	first, err := OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	if _, err := OpenBolt(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
