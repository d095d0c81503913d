// Package memory keeps photos, reactions and rotation state in process
// memory. It backs tests and single-process development runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// Store is an in-memory gallery.PhotoStore.
type Store struct {
	mu     sync.RWMutex
	photos map[string]gallery.Photo
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{photos: make(map[string]gallery.Photo)}
}

// ListPhotos returns all photos in no particular order.
func (s *Store) ListPhotos(_ context.Context) ([]gallery.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gallery.Photo, 0, len(s.photos))
	for _, p := range s.photos {
		out = append(out, p)
	}
	return out, nil
}

// InsertPhoto stores photo. Ids are unique.
func (s *Store) InsertPhoto(_ context.Context, photo gallery.Photo) (gallery.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[photo.ID]; ok {
		return gallery.Photo{}, fmt.Errorf("photo %s already exists", photo.ID)
	}
	s.photos[photo.ID] = photo
	return photo, nil
}

// Ledger is an in-memory gallery.Ledger. Upserts on the same photo are
// serialized by a per-photo lock.
type Ledger struct {
	mu     sync.Mutex
	photos map[string]*photoReactions
}

type photoReactions struct {
	mu       sync.RWMutex
	byViewer map[string]string
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{photos: make(map[string]*photoReactions)}
}

// GetReactions returns the reactions on photoID sorted by viewer id.
func (l *Ledger) GetReactions(_ context.Context, photoID string) ([]gallery.Reaction, error) {
	pr := l.entry(photoID, false)
	if pr == nil {
		return []gallery.Reaction{}, nil
	}
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.list(), nil
}

// UpsertReaction sets the viewer's reaction on photoID and returns the
// photo's reactions.
func (l *Ledger) UpsertReaction(_ context.Context, photoID, viewerID, emoji string) ([]gallery.Reaction, error) {
	if err := gallery.ValidateReaction(photoID, viewerID, emoji); err != nil {
		return nil, err
	}

	pr := l.entry(photoID, true)
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.byViewer[viewerID] = emoji
	return pr.list(), nil
}

func (l *Ledger) entry(photoID string, create bool) *photoReactions {
	l.mu.Lock()
	defer l.mu.Unlock()

	pr, ok := l.photos[photoID]
	if !ok && create {
		pr = &photoReactions{byViewer: make(map[string]string)}
		l.photos[photoID] = pr
	}
	return pr
}

func (pr *photoReactions) list() []gallery.Reaction {
	out := make([]gallery.Reaction, 0, len(pr.byViewer))
	for viewer, emoji := range pr.byViewer {
		out = append(out, gallery.Reaction{ViewerID: viewer, Emoji: emoji})
	}
	gallery.SortReactions(out)
	return out
}

// RotationState is an in-memory gallery.RotationState.
type RotationState struct {
	mu   sync.RWMutex
	last map[string]string
}

// NewRotationState returns an empty RotationState.
func NewRotationState() *RotationState {
	return &RotationState{last: make(map[string]string)}
}

// LastShown returns the last photo id served to viewerID, or "".
func (r *RotationState) LastShown(_ context.Context, viewerID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last[viewerID], nil
}

// SetLastShown records photoID as served to viewerID.
func (r *RotationState) SetLastShown(_ context.Context, viewerID, photoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[viewerID] = photoID
	return nil
}

// Reset forgets every viewer's rotation state.
func (r *RotationState) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = make(map[string]string)
}
