package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "nonce")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("missing key reported as present")
	}
}

func TestSetGetOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "nonce", "1700000000000"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "nonce", "1700000000001"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	value, ok, err := store.Get(ctx, "nonce")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || value != "1700000000001" {
		t.Fatalf("Get = %q, %v; want latest value", value, ok)
	}
}

func TestValueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Set(ctx, "nonce", "42"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "nonce")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !ok || value != "42" {
		t.Fatalf("Get = %q, %v; want 42 after reopen", value, ok)
	}
}
