package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// A photo represents a photo hash in Redis.
type photo struct {
	ID        string `redis:"id"`
	Locator   string `redis:"locator"`
	CreatedAt int64  `redis:"created_at"`
	Metadata  string `redis:"metadata"`
}

func newPhoto(p gallery.Photo) (*photo, error) {
	m := &photo{
		ID:        p.ID,
		Locator:   p.Locator,
		CreatedAt: p.CreatedAt.UnixNano(),
	}
	if p.Metadata != nil {
		b, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		m.Metadata = string(b)
	}
	return m, nil
}

func (p photo) GalleryPhoto() (gallery.Photo, error) {
	out := gallery.Photo{
		ID:        p.ID,
		Locator:   p.Locator,
		CreatedAt: time.Unix(0, p.CreatedAt).UTC(),
	}
	if p.Metadata != "" {
		out.Metadata = &gallery.Metadata{}
		if err := json.Unmarshal([]byte(p.Metadata), out.Metadata); err != nil {
			return gallery.Photo{}, fmt.Errorf("decode metadata of %s: %w", p.ID, err)
		}
	}
	return out, nil
}

// reactions converts a viewer -> emoji hash into a sorted reaction set.
func reactions(byViewer map[string]string) []gallery.Reaction {
	out := make([]gallery.Reaction, 0, len(byViewer))
	for viewer, emoji := range byViewer {
		out = append(out, gallery.Reaction{ViewerID: viewer, Emoji: emoji})
	}
	gallery.SortReactions(out)
	return out
}
