package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// CreateSchema creates the photos and reactions tables if they are missing.
func (pg *Postgres) CreateSchema(ctx context.Context) error {
	for _, model := range []any{(*photo)(nil), (*reaction)(nil)} {
		if _, err := pg.bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := pg.bun.NewCreateIndex().
		Model((*photo)(nil)).
		Index("photos_created_at_idx").
		IfNotExists().
		Column("created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Close closes the database.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// ListPhotos returns all photos in the database, newest first.
func (pg *Postgres) ListPhotos(ctx context.Context) ([]gallery.Photo, error) {
	var photos []photo
	err := pg.bun.NewSelect().
		Model(&photos).
		Order("created_at DESC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]gallery.Photo, len(photos))
	for i, p := range photos {
		out[i] = p.GalleryPhoto()
	}
	return out, nil
}

// InsertPhoto inserts a photo into the database.
func (pg *Postgres) InsertPhoto(ctx context.Context, p gallery.Photo) (gallery.Photo, error) {
	m := &photo{
		ID:        p.ID,
		Locator:   p.Locator,
		Metadata:  p.Metadata,
		CreatedAt: p.CreatedAt,
	}
	if _, err := pg.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return gallery.Photo{}, fmt.Errorf("insert: %w", err)
	}
	return m.GalleryPhoto(), nil
}

// GetReactions returns the reactions on photoID sorted by viewer id.
func (pg *Postgres) GetReactions(ctx context.Context, photoID string) ([]gallery.Reaction, error) {
	reactions, err := listReactions(ctx, pg.bun, photoID)
	if err != nil {
		return nil, gallery.StorageError("get reactions", err)
	}
	return reactions, nil
}

// UpsertReaction inserts or replaces the viewer's reaction and returns the
// photo's reactions, all within one transaction.
func (pg *Postgres) UpsertReaction(ctx context.Context, photoID, viewerID, emoji string) ([]gallery.Reaction, error) {
	if err := gallery.ValidateReaction(photoID, viewerID, emoji); err != nil {
		return nil, err
	}

	var out []gallery.Reaction
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rm := &reaction{
			PhotoID:   photoID,
			ViewerID:  viewerID,
			Emoji:     emoji,
			UpdatedAt: time.Now(),
		}
		_, err := tx.NewInsert().
			Model(rm).
			On("CONFLICT (photo_id, viewer_id) DO UPDATE").
			Set("emoji = EXCLUDED.emoji").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert: %w", err)
		}

		out, err = listReactions(ctx, tx, photoID)
		return err
	})
	if err != nil {
		return nil, gallery.StorageError("upsert reaction", err)
	}
	return out, nil
}

func listReactions(ctx context.Context, db bun.IDB, photoID string) ([]gallery.Reaction, error) {
	var rows []reaction
	err := db.NewSelect().
		Model(&rows).
		Where("photo_id = ?", photoID).
		Order("viewer_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	out := make([]gallery.Reaction, len(rows))
	for i, r := range rows {
		out[i] = r.GalleryReaction()
	}
	return out, nil
}
