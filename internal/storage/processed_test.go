package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFileStoreSeedsEmptySet(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir, noopLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ids, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty set, got %v", ids)
	}

	data, err := os.ReadFile(filepath.Join(dir, processedFileName))
	if err != nil {
		t.Fatalf("read seeded file: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("seeded file = %q, want []", data)
	}
}

func TestFileStoreAppendPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir, noopLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	for _, id := range []string{"0xaaa", "0xbbb", "0xccc"} {
		if err := store.Append(ctx, id); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}

	ids, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"0xaaa", "0xbbb", "0xccc"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestFileStoreAppendIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir, noopLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Append(ctx, "0xaaa"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, "0xaaa"); err != nil {
		t.Fatalf("duplicate Append: %v", err)
	}

	ids, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id after duplicate append, got %v", ids)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir, noopLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Append(ctx, "0xaaa"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reopened, err := NewFileStore(dir, noopLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	ids, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if len(ids) != 1 || ids[0] != "0xaaa" {
		t.Fatalf("ids after reopen = %v", ids)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir, noopLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, processedFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("corrupt file must surface an error")
	}
	if err := store.Append(context.Background(), "0xaaa"); err == nil {
		t.Fatal("append on a corrupt file must surface an error")
	}
}
