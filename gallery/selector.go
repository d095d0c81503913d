package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// Selector picks the next photo for a viewer. It never serves the photo the
// viewer saw last, except when that photo is the only one in the catalog.
type Selector struct {
	Catalog PhotoLister
	Ledger  Ledger
	State   RotationState
	// Blobs, when set, is checked before a photo is served. A photo whose
	// bytes are gone triggers one retry against a refreshed catalog.
	Blobs   Storage
	Logger  *slog.Logger
	Timeout time.Duration

	// Intn returns a uniform integer in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// invalidator is implemented by catalogs that cache their enumeration.
type invalidator interface {
	Invalidate()
}

// Next selects a photo for viewerID, records it as the viewer's last shown
// photo and attaches its current reactions.
func (s *Selector) Next(ctx context.Context, viewerID string) (Selection, error) {
	if strings.TrimSpace(viewerID) == "" {
		return Selection{}, fmt.Errorf("viewer id is required: %w", ErrInvalidRequest)
	}

	ctx, cancel := WithTimeout(ctx, s.Timeout)
	defer cancel()

	last, err := s.State.LastShown(ctx, viewerID)
	if err != nil {
		s.logger().Warn("Could not read rotation state", "viewer", viewerID, "error", err.Error())
		last = ""
	}

	var dangling []string
	for attempt := 0; attempt < 2; attempt++ {
		photos, err := s.Catalog.ListPhotos(ctx)
		if err != nil {
			return Selection{}, fmt.Errorf("list photos: %w", err)
		}
		photos = slices.DeleteFunc(photos, func(p Photo) bool {
			return slices.Contains(dangling, p.ID)
		})
		if len(photos) == 0 {
			return Selection{}, ErrNoPhotosAvailable
		}

		chosen := s.pick(candidates(photos, last))

		ok, err := s.resolves(ctx, chosen.ID)
		if err != nil {
			return Selection{}, err
		}
		if !ok {
			s.logger().Warn("Selected photo no longer resolves", "id", chosen.ID, "attempt", attempt+1)
			dangling = append(dangling, chosen.ID)
			if inv, ok := s.Catalog.(invalidator); ok {
				inv.Invalidate()
			}
			continue
		}

		if err := s.State.SetLastShown(ctx, viewerID, chosen.ID); err != nil {
			s.logger().Warn("Could not record rotation state", "viewer", viewerID, "error", err.Error())
		}

		reactions, err := s.Ledger.GetReactions(ctx, chosen.ID)
		if err != nil {
			return Selection{}, fmt.Errorf("get reactions: %w", err)
		}
		return Selection{Photo: chosen, Reactions: reactions}, nil
	}

	return Selection{}, fmt.Errorf("photo %s: %w", dangling[len(dangling)-1], ErrNotFound)
}

// candidates removes the last shown photo. When nothing would remain, the
// full set is returned so that a single photo can always be served.
func candidates(photos []Photo, last string) []Photo {
	if last == "" {
		return photos
	}
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if p.ID != last {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return photos
	}
	return out
}

func (s *Selector) pick(photos []Photo) Photo {
	intn := s.Intn
	if intn == nil {
		intn = rand.IntN
	}
	return photos[intn(len(photos))]
}

func (s *Selector) resolves(ctx context.Context, id string) (bool, error) {
	if s.Blobs == nil {
		return true, nil
	}
	ok, err := s.Blobs.Exists(ctx, id)
	if err != nil {
		return false, StorageError("check photo", err)
	}
	return ok, nil
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
