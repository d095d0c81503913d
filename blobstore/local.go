// Package blobstore keeps uploaded image bytes on the local filesystem with
// a badger index of what was stored.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// Metadata is the index entry for a stored blob.
type Metadata struct {
	ID       string    `json:"id"`
	Hash     string    `json:"hash"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// Local implements gallery.Storage on a directory. Bytes live in
// ROOT/photos/ID, the index in ROOT/index.
type Local struct {
	photos  string
	baseURL string
	db      *badger.DB
	mu      sync.RWMutex
}

// NewLocal opens (creating if needed) a store rooted at root. Locators are
// baseURL + "/" + id.
func NewLocal(root, baseURL string) (*Local, error) {
	photos := filepath.Join(root, "photos")
	if err := os.MkdirAll(photos, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(root, "index"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	return &Local{
		photos:  photos,
		baseURL: strings.TrimRight(baseURL, "/"),
		db:      db,
	}, nil
}

// Dir returns the directory holding the image files.
func (b *Local) Dir() string {
	return b.photos
}

// Locator returns the address the bytes of id are served from.
func (b *Local) Locator(id string) string {
	return b.baseURL + "/" + id
}

// Store writes data under id and indexes it. The file is written to a
// temporary name first so that a failed store leaves nothing behind.
func (b *Local) Store(_ context.Context, id string, data io.Reader) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(b.photos, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	size, err := io.Copy(tmp, io.TeeReader(data, h))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if err := os.Rename(tmp.Name(), b.path(id)); err != nil {
		return "", fmt.Errorf("failed to move file: %w", err)
	}

	metadata := &Metadata{
		ID:       id,
		Hash:     hex.EncodeToString(h.Sum(nil)),
		Size:     size,
		StoredAt: time.Now(),
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		return txn.Set([]byte(id), data)
	})
	if err != nil {
		_ = os.Remove(b.path(id))
		return "", fmt.Errorf("failed to index %s: %w", id, err)
	}
	return b.Locator(id), nil
}

// Retrieve opens the bytes of id. Missing ids, in the index or on disk,
// return an error wrapping gallery.ErrNotFound.
func (b *Local) Retrieve(_ context.Context, id string) (io.ReadCloser, error) {
	if err := checkID(id); err != nil {
		return nil, fmt.Errorf("image %s: %w", id, gallery.ErrNotFound)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.metadata(id); err != nil {
		return nil, err
	}
	file, err := os.Open(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image file %s: %w", id, gallery.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Remove deletes the bytes and the index entry of id. Removing a missing id
// is not an error.
func (b *Local) Remove(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(id))
	})
}

// Exists reports whether id is indexed and its file is still on disk.
func (b *Local) Exists(_ context.Context, id string) (bool, error) {
	if err := checkID(id); err != nil {
		return false, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, err := b.metadata(id); err != nil {
		if errors.Is(err, gallery.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return b.onDisk(id)
}

// List returns the ids that are indexed and still present on disk.
func (b *Local) List(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := ids[:0]
	for _, id := range ids {
		ok, err := b.onDisk(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Close closes the index.
func (b *Local) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *Local) metadata(id string) (*Metadata, error) {
	var metadata Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("image %s: %w", id, gallery.ErrNotFound)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &metadata)
		})
	})
	if err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (b *Local) onDisk(id string) (bool, error) {
	_, err := os.Stat(b.path(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat file: %w", err)
}

func (b *Local) path(id string) string {
	return filepath.Join(b.photos, id)
}

func checkID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid image id %q: %w", id, gallery.ErrInvalidRequest)
	}
	return nil
}
