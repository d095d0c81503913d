package postgres

import (
	"time"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// A photo represents a registered photo in the database.
type photo struct {
	ID        string            `bun:",pk"`
	Locator   string            `bun:",notnull"`
	Metadata  *gallery.Metadata `bun:"type:jsonb"`
	CreatedAt time.Time         `bun:",nullzero,notnull,default:now()"`
}

// reaction is the single emoji a viewer has on a photo. The composite
// primary key is what makes an insert an upsert.
type reaction struct {
	PhotoID   string    `bun:",pk"`
	ViewerID  string    `bun:",pk"`
	Emoji     string    `bun:",notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

func (p photo) GalleryPhoto() gallery.Photo {
	return gallery.Photo{
		ID:        p.ID,
		Locator:   p.Locator,
		CreatedAt: p.CreatedAt,
		Metadata:  p.Metadata,
	}
}

func (r reaction) GalleryReaction() gallery.Reaction {
	return gallery.Reaction{
		ViewerID: r.ViewerID,
		Emoji:    r.Emoji,
	}
}
