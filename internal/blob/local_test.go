package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	content := "not really a pdf"
	if err := store.Put(ctx, "doc.pdf", strings.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, err := store.Get(ctx, "doc.pdf")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("got %q, want %q", data, content)
	}

	if err := store.Delete(ctx, "doc.pdf"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "doc.pdf"); err == nil {
		t.Error("expected error reading deleted object")
	}
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	for _, name := range []string{"../escape.pdf", "/etc/passwd", "a/../../b"} {
		if err := store.Put(ctx, name, strings.NewReader("x"), 1, ""); err == nil {
			t.Errorf("Put(%q) should be rejected", name)
		}
		if _, err := store.Get(ctx, name); err == nil {
			t.Errorf("Get(%q) should be rejected", name)
		}
	}
}

func TestLocalStoreDeleteMissingIsNoError(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	if err := store.Delete(context.Background(), "never-existed.pdf"); err != nil {
		t.Errorf("Delete of missing object failed: %v", err)
	}
}
