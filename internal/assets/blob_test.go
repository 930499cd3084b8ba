package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vintera/labelforge/internal/fault"
)

func TestFSStore_UploadAndURL(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "https://cdn.test/", nil)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	key := ContentKey("ab12", "png")
	url, err := store.Upload(context.Background(), key, []byte("payload"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if want := "https://cdn.test/content/ab12.png"; url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	data, err := os.ReadFile(filepath.Join(store.root, "content", "ab12.png"))
	if err != nil {
		t.Fatalf("reading stored blob: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("stored %q", data)
	}
}

func TestFSStore_SecondUploadConflicts(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "https://cdn.test", nil)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	key := ContentKey("cd34", "png")
	if _, err := store.Upload(context.Background(), key, []byte("first")); err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}

	_, err = store.Upload(context.Background(), key, []byte("second"))
	if err == nil {
		t.Fatal("second Upload() succeeded, want conflict")
	}
	if !fault.IsConflict(err) {
		t.Errorf("error = %v, want storage conflict", err)
	}

	// First write wins.
	data, err := os.ReadFile(filepath.Join(store.root, "content", "cd34.png"))
	if err != nil {
		t.Fatalf("reading stored blob: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("stored %q, want %q", data, "first")
	}
}

func TestFSStore_RemoveToleratesMissing(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "https://cdn.test", nil)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	if err := store.Remove(context.Background(), ContentKey("none", "png")); err != nil {
		t.Errorf("Remove() of missing key errored: %v", err)
	}
}

func TestFSStore_RejectsTraversalKeys(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "https://cdn.test", nil)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}

	for _, key := range []string{"../escape", "/absolute", "."} {
		if _, err := store.Upload(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Upload(%q) accepted an unsafe key", key)
		}
	}
}
