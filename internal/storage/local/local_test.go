package local

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	b, err := New(Config{RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	ctx := context.Background()

	content := []byte("hello depot")
	if err := b.PutObject(ctx, "obj1", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("put: %v", err)
	}

	rc, size, err := b.GetObject(ctx, "obj1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()

	if size != int64(len(content)) {
		t.Errorf("size = %d, want %d", size, len(content))
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestObjectExists(t *testing.T) {
	b, err := New(Config{RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	ctx := context.Background()

	ok, err := b.ObjectExists(ctx, "missing")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Error("missing object reported as existing")
	}

	if err := b.PutObject(ctx, "present", bytes.NewReader([]byte("x")), 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err = b.ObjectExists(ctx, "present")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Error("stored object reported as missing")
	}
}

func TestPutOverwrites(t *testing.T) {
	b, err := New(Config{RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	ctx := context.Background()

	if err := b.PutObject(ctx, "k", bytes.NewReader([]byte("old")), 3); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.PutObject(ctx, "k", bytes.NewReader([]byte("newer")), 5); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	rc, _, err := b.GetObject(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "newer" {
		t.Errorf("got %q, want %q", got, "newer")
	}
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "storage")
	if _, err := New(Config{RootPath: root}); err != nil {
		t.Fatalf("expected root to be created, got %v", err)
	}
}
