// Package ingest turns an uploaded file into a registered photo: it checks
// the file, normalizes the image, stores the bytes and registers the entry.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MilekOfficial/SwapSnap/gallery"
	"github.com/MilekOfficial/SwapSnap/imaging"
)

// DefaultMaxBytes caps the size of an uploaded file.
const DefaultMaxBytes = 5 << 20

var (
	// ErrFileType reports a file name whose extension is not accepted.
	ErrFileType = errors.New("file type not allowed")
	// ErrTooLarge reports a file above MaxBytes.
	ErrTooLarge = errors.New("file too large")
)

var allowedExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// AllowedFile reports whether name has an accepted image extension.
func AllowedFile(name string) bool {
	return slices.Contains(allowedExtensions, strings.ToLower(filepath.Ext(name)))
}

// A Processor normalizes raw image bytes.
type Processor interface {
	Process(data []byte) (imaging.Processed, error)
}

// A Registrar persists catalog entries.
type Registrar interface {
	RegisterPhoto(ctx context.Context, photo gallery.Photo) (gallery.Photo, error)
}

// Pipeline ingests uploaded files.
type Pipeline struct {
	Processor Processor
	Storage   gallery.Storage
	Catalog   Registrar
	Logger    *slog.Logger
	MaxBytes  int64

	Now func() time.Time
}

// Ingest reads an image named filename from r and returns the registered
// photo. The photo only counts as uploaded once Ingest returns it; on a
// failed registration the stored bytes are removed again.
func (p *Pipeline) Ingest(ctx context.Context, filename string, r io.Reader) (gallery.Photo, error) {
	if !AllowedFile(filename) {
		return gallery.Photo{}, fmt.Errorf("%q: %w", filename, ErrFileType)
	}

	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes()+1))
	if err != nil {
		return gallery.Photo{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.maxBytes() {
		return gallery.Photo{}, fmt.Errorf("%q: %w", filename, ErrTooLarge)
	}

	processed, err := p.Processor.Process(data)
	if err != nil {
		return gallery.Photo{}, fmt.Errorf("process %q: %w", filename, err)
	}
	processed.Metadata.OriginalFilename = filepath.Base(filename)

	now := p.now()
	id := NewID(now, processed.Ext())

	locator, err := p.Storage.Store(ctx, id, bytes.NewReader(processed.Data))
	if err != nil {
		return gallery.Photo{}, gallery.StorageError("store image", err)
	}

	md := processed.Metadata
	photo, err := p.Catalog.RegisterPhoto(ctx, gallery.Photo{
		ID:        id,
		Locator:   locator,
		CreatedAt: now,
		Metadata:  &md,
	})
	if err != nil {
		if rmErr := p.Storage.Remove(ctx, id); rmErr != nil {
			p.logger().Error("Could not remove unregistered image", "id", id, "error", rmErr.Error())
		}
		return gallery.Photo{}, err
	}

	p.logger().Info("Photo ingested",
		"id", photo.ID,
		"format", md.Format,
		"width", md.Width,
		"height", md.Height,
		"compression_ratio", md.CompressionRatio,
	)
	return photo, nil
}

// NewID returns a storage id: a sortable timestamp, a random suffix and ext.
func NewID(now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", now.UTC().Format("20060102150405"), uuid.NewString(), ext)
}

func (p *Pipeline) maxBytes() int64 {
	if p.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return p.MaxBytes
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
