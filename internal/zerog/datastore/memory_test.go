package datastore

import (
	"context"
	"testing"

	zgerrors "github.com/tiptapinc/zerog-go/pkg/errors"
)

func TestMemoryStore_CreateAndRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, "k1", []byte("hello")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	value, ok, err := store.Read(ctx, "k1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to exist")
	}
	if string(value) != "hello" {
		t.Errorf("expected %q, got %q", "hello", value)
	}
}

func TestMemoryStore_CreateTwiceFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, "k1", []byte("a")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := store.Create(ctx, "k1", []byte("b"))
	if err == nil {
		t.Fatal("expected error on duplicate create")
	}
	if kind, ok := zgerrors.KindOf(err); !ok || kind != zgerrors.KindExists {
		t.Errorf("expected KindExists, got %v", kind)
	}
}

func TestMemoryStore_SetWithCASUpsertsOnMissingKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	newCas, err := store.SetWithCAS(ctx, "k1", []byte("v1"), 0)
	if err != nil {
		t.Fatalf("SetWithCAS failed: %v", err)
	}
	if newCas != 1 {
		t.Errorf("expected cas 1, got %d", newCas)
	}
}

func TestMemoryStore_SetWithCASMismatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.SetWithCAS(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("SetWithCAS failed: %v", err)
	}

	_, err := store.SetWithCAS(ctx, "k1", []byte("v2"), 99)
	if err == nil {
		t.Fatal("expected cas mismatch error")
	}
	if kind, ok := zgerrors.KindOf(err); !ok || kind != zgerrors.KindCASMismatch {
		t.Errorf("expected KindCASMismatch, got %v", kind)
	}
}

func TestMemoryStore_SetWithCASSucceedsWithMatchingCAS(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cas, err := store.SetWithCAS(ctx, "k1", []byte("v1"), 0)
	if err != nil {
		t.Fatalf("SetWithCAS failed: %v", err)
	}

	newCas, err := store.SetWithCAS(ctx, "k1", []byte("v2"), cas)
	if err != nil {
		t.Fatalf("SetWithCAS failed: %v", err)
	}
	if newCas != cas+1 {
		t.Errorf("expected cas %d, got %d", cas+1, newCas)
	}

	value, _, err := store.Read(ctx, "k1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(value) != "v2" {
		t.Errorf("expected v2, got %s", value)
	}
}

func TestMemoryStore_DeleteAbsentKeyIsNotAnError(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("expected no error deleting absent key, got %v", err)
	}
}

func TestMemoryStore_LockPreventsSecondLockAndConflictingSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.SetWithCAS(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("SetWithCAS failed: %v", err)
	}

	token, err := store.Lock(ctx, "k1", 60)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	if _, err := store.Lock(ctx, "k1", 60); err == nil {
		t.Fatal("expected second lock to fail")
	}

	if _, err := store.SetWithCAS(ctx, "k1", []byte("v2"), 1); err == nil {
		t.Fatal("expected SetWithCAS to fail while locked")
	}

	if err := store.Unlock(ctx, "k1", token); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	if _, err := store.SetWithCAS(ctx, "k1", []byte("v2"), 1); err != nil {
		t.Fatalf("expected SetWithCAS to succeed after unlock: %v", err)
	}
}

func TestMemoryStore_UnlockWrongTokenFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Lock(ctx, "k1", 60)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	_ = token

	if err := store.Unlock(ctx, "k1", "wrong-token"); err == nil {
		t.Fatal("expected unlock with wrong token to fail")
	}
}
