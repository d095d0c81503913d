// Package gallery holds the photo rotation and the reaction ledger: the
// domain types shared by every store, the contracts those stores satisfy,
// and the selection policy that picks the next photo for a viewer.
package gallery

import (
	"context"
	"io"
	"time"
)

// A Photo is a registered, immutable image.
type Photo struct {
	ID        string    `json:"id"`
	Locator   string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Metadata describes an image before and after ingestion. The rotation and
// the ledger never look inside it.
type Metadata struct {
	OriginalFilename string  `json:"original_filename,omitempty"`
	Format           string  `json:"format"`
	OriginalWidth    int     `json:"original_width"`
	OriginalHeight   int     `json:"original_height"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	OriginalSize     int64   `json:"original_size"`
	Size             int64   `json:"size"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// A Reaction is the single emoji a viewer currently has on a photo.
type Reaction struct {
	ViewerID string `json:"user_id"`
	Emoji    string `json:"emoji"`
}

// ReactionSummary counts how many viewers picked an emoji on a photo.
type ReactionSummary struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// A Selection is what the rotation serves: a photo and its current
// reactions.
type Selection struct {
	Photo     Photo      `json:"photo"`
	Reactions []Reaction `json:"reactions"`
}

// A PhotoStore persists photo entries keyed by photo id.
type PhotoStore interface {
	ListPhotos(ctx context.Context) ([]Photo, error)
	InsertPhoto(ctx context.Context, photo Photo) (Photo, error)
}

// PhotoLister enumerates the catalog newest first.
type PhotoLister interface {
	ListPhotos(ctx context.Context) ([]Photo, error)
}

// A Ledger maps (photo, viewer) to one emoji. UpsertReaction replaces any
// earlier reaction of the viewer on the photo and returns the full reaction
// set of the photo.
type Ledger interface {
	GetReactions(ctx context.Context, photoID string) ([]Reaction, error)
	UpsertReaction(ctx context.Context, photoID, viewerID, emoji string) ([]Reaction, error)
}

// RotationState remembers the last photo served to each viewer. An empty id
// means nothing was shown yet.
type RotationState interface {
	LastShown(ctx context.Context, viewerID string) (string, error)
	SetLastShown(ctx context.Context, viewerID, photoID string) error
}

// Storage keeps image bytes. Retrieve returns an error wrapping ErrNotFound
// for ids that no longer resolve.
type Storage interface {
	Store(ctx context.Context, id string, data io.Reader) (string, error)
	Retrieve(ctx context.Context, id string) (io.ReadCloser, error)
	Remove(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]string, error)
}
