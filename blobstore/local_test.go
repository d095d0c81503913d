package blobstore_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/neilotoole/slogt"

	"github.com/MilekOfficial/SwapSnap/blobstore"
	"github.com/MilekOfficial/SwapSnap/gallery"
)

func newLocal(t *testing.T) *blobstore.Local {
	t.Helper()
	backend, err := blobstore.NewLocal(t.TempDir(), "/uploads/")
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestLocal(t *testing.T) {
	backend := newLocal(t)
	ctx := context.Background()

	imageID := "20240101000000_test.jpg"
	testData := "Hello, World! This is test image data."

	locator, err := backend.Store(ctx, imageID, strings.NewReader(testData))
	if err != nil {
		t.Fatalf("Failed to store image: %v", err)
	}
	if locator != "/uploads/"+imageID {
		t.Errorf("Got locator %q, want /uploads/%s", locator, imageID)
	}

	exists, err := backend.Exists(ctx, imageID)
	if err != nil {
		t.Fatalf("Failed to check existence: %v", err)
	}
	if !exists {
		t.Fatal("Image should exist after storing")
	}

	reader, err := backend.Retrieve(ctx, imageID)
	if err != nil {
		t.Fatalf("Failed to retrieve image: %v", err)
	}
	got, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("Failed to read retrieved data: %v", err)
	}
	if string(got) != testData {
		t.Fatalf("Retrieved data doesn't match. Expected: %s, Got: %s", testData, got)
	}

	ids, err := backend.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list images: %v", err)
	}
	if !slices.Contains(ids, imageID) {
		t.Fatal("Image ID should be in the list")
	}

	if err := backend.Remove(ctx, imageID); err != nil {
		t.Fatalf("Failed to remove image: %v", err)
	}
	exists, _ = backend.Exists(ctx, imageID)
	if exists {
		t.Fatal("Image should not exist after removal")
	}
	if err := backend.Remove(ctx, imageID); err != nil {
		t.Errorf("Removing a missing image should succeed, got %v", err)
	}
}

func TestLocal_ExternalRemoval(t *testing.T) {
	backend := newLocal(t)
	ctx := context.Background()

	if _, err := backend.Store(ctx, "a.png", strings.NewReader("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := backend.Store(ctx, "b.png", strings.NewReader("b")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(backend.Dir(), "a.png")); err != nil {
		t.Fatal(err)
	}

	if ok, _ := backend.Exists(ctx, "a.png"); ok {
		t.Error("Exists should be false once the file is gone")
	}
	ids, err := backend.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []string{"b.png"}) {
		t.Errorf("Got ids %v, want [b.png]", ids)
	}
	if _, err := backend.Retrieve(ctx, "a.png"); !errors.Is(err, gallery.ErrNotFound) {
		t.Errorf("Got error %v, want ErrNotFound", err)
	}
}

func TestLocal_RejectsPaths(t *testing.T) {
	backend := newLocal(t)
	ctx := context.Background()

	for _, id := range []string{"", "../escape.jpg", "dir/file.jpg", ".hidden"} {
		if _, err := backend.Store(ctx, id, strings.NewReader("x")); !errors.Is(err, gallery.ErrInvalidRequest) {
			t.Errorf("Store(%q): got error %v, want ErrInvalidRequest", id, err)
		}
		if _, err := backend.Retrieve(ctx, id); !errors.Is(err, gallery.ErrNotFound) {
			t.Errorf("Retrieve(%q): got error %v, want ErrNotFound", id, err)
		}
	}
}

func TestLocal_Watch(t *testing.T) {
	backend := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := backend.Store(ctx, "gone.jpg", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	removed := make(chan string, 1)
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- backend.Watch(ctx, slogt.New(t), func(id string) {
			select {
			case removed <- id:
			default:
			}
		})
	}()
	<-started

	// The watcher registers asynchronously; retry the removal signal by
	// recreating and removing the file until it is observed.
	deadline := time.After(5 * time.Second)
	path := filepath.Join(backend.Dir(), "gone.jpg")
	for {
		_ = os.WriteFile(path, []byte("x"), 0o644)
		_ = os.Remove(path)
		select {
		case id := <-removed:
			if id != "gone.jpg" {
				t.Errorf("Got removal of %q, want gone.jpg", id)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("No removal observed")
		}
	}
}
