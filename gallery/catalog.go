package gallery

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultRefreshInterval is how long a catalog snapshot is served before
	// the store is read again.
	DefaultRefreshInterval = 10 * time.Second
	maxRefreshInterval     = 30 * time.Second
)

// Catalog is the read model over a PhotoStore. It serves a newest-first
// snapshot that is at most RefreshInterval old, and drops photos whose bytes
// are gone from Blobs when one is configured.
type Catalog struct {
	Store           PhotoStore
	Blobs           Storage
	Logger          *slog.Logger
	RefreshInterval time.Duration
	Timeout         time.Duration

	now func() time.Time

	mu       sync.Mutex
	snapshot []Photo
	loadedAt time.Time
	// gen changes on every write through the catalog; a Refresh that
	// started under an older gen does not install its result.
	gen uint64
}

// ListPhotos returns every known photo, newest first. An empty catalog is
// an empty slice.
func (c *Catalog) ListPhotos(ctx context.Context) ([]Photo, error) {
	c.mu.Lock()
	if c.snapshot != nil && c.clock().Sub(c.loadedAt) < c.refreshInterval() {
		out := slices.Clone(c.snapshot)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh reloads the snapshot from the store.
func (c *Catalog) Refresh(ctx context.Context) ([]Photo, error) {
	ctx, cancel := WithTimeout(ctx, c.Timeout)
	defer cancel()

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	photos, err := c.Store.ListPhotos(ctx)
	if err != nil {
		return nil, StorageError("list photos", err)
	}
	photos, err = c.dropDangling(ctx, photos)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(photos)

	c.mu.Lock()
	if c.gen == gen {
		c.snapshot = photos
		c.loadedAt = c.clock()
	} else {
		c.snapshot = nil
	}
	c.mu.Unlock()

	return slices.Clone(photos), nil
}

// RegisterPhoto persists a freshly ingested photo. The photo is part of the
// next ListPhotos result once RegisterPhoto returns without error.
func (c *Catalog) RegisterPhoto(ctx context.Context, photo Photo) (Photo, error) {
	if strings.TrimSpace(photo.ID) == "" {
		return Photo{}, fmt.Errorf("photo id is required: %w", ErrInvalidRequest)
	}
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = c.clock()
	}

	ctx, cancel := WithTimeout(ctx, c.Timeout)
	defer cancel()

	stored, err := c.Store.InsertPhoto(ctx, photo)
	if err != nil {
		return Photo{}, StorageError("insert photo", err)
	}

	c.mu.Lock()
	c.gen++
	if c.snapshot != nil {
		c.snapshot = append(c.snapshot, stored)
		sortNewestFirst(c.snapshot)
	}
	c.mu.Unlock()

	c.logger().Info("Photo registered", "id", stored.ID)
	return stored, nil
}

// Invalidate drops the snapshot so that the next ListPhotos reads the store.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.snapshot = nil
	c.mu.Unlock()
}

func (c *Catalog) dropDangling(ctx context.Context, photos []Photo) ([]Photo, error) {
	if photos == nil {
		photos = []Photo{}
	}
	if c.Blobs == nil || len(photos) == 0 {
		return photos, nil
	}

	ids, err := c.Blobs.List(ctx)
	if err != nil {
		return nil, StorageError("list blobs", err)
	}
	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}

	out := photos[:0]
	for _, p := range photos {
		if _, ok := present[p.ID]; !ok {
			c.logger().Warn("Dropping photo without stored bytes", "id", p.ID)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Catalog) refreshInterval() time.Duration {
	switch {
	case c.RefreshInterval <= 0:
		return DefaultRefreshInterval
	case c.RefreshInterval > maxRefreshInterval:
		return maxRefreshInterval
	}
	return c.RefreshInterval
}

func (c *Catalog) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Catalog) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func sortNewestFirst(photos []Photo) {
	slices.SortStableFunc(photos, func(a, b Photo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
