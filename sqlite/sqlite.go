// Package sqlite provides photo and reaction storage in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

const (
	schemaStmt = `
CREATE TABLE IF NOT EXISTS photos (
	id TEXT NOT NULL PRIMARY KEY,
	locator TEXT NOT NULL,
	metadata TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_photos_created ON photos(created_at);

CREATE TABLE IF NOT EXISTS reactions (
	photo_id TEXT NOT NULL,
	viewer_id TEXT NOT NULL,
	emoji TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (photo_id, viewer_id)
);
`
	listPhotosStmt = `
SELECT id, locator, metadata, created_at FROM photos ORDER BY created_at DESC, id ASC
`
	insertPhotoStmt = `
INSERT INTO photos (id, locator, metadata, created_at) VALUES (?, ?, ?, ?)
`
	listReactionsStmt = `
SELECT viewer_id, emoji FROM reactions WHERE photo_id = ? ORDER BY viewer_id ASC
`
	upsertReactionStmt = `
INSERT INTO reactions (photo_id, viewer_id, emoji, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(photo_id, viewer_id) DO UPDATE SET
	emoji = excluded.emoji,
	updated_at = excluded.updated_at
`
)

// DB provides photo and reaction storage in SQLite.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Write transactions take the database lock up front so that
// concurrent upserts wait on the busy timeout instead of failing.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaStmt); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// ListPhotos returns all photos, newest first.
func (d *DB) ListPhotos(ctx context.Context) (result []gallery.Photo, err error) {
	rows, err := d.db.QueryContext(ctx, listPhotosStmt)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	photos := []gallery.Photo{}
	for rows.Next() {
		var (
			p        gallery.Photo
			metadata sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Locator, &metadata, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			p.Metadata = &gallery.Metadata{}
			if err := json.Unmarshal([]byte(metadata.String), p.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", p.ID, err)
			}
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// InsertPhoto inserts a photo row.
func (d *DB) InsertPhoto(ctx context.Context, photo gallery.Photo) (gallery.Photo, error) {
	var metadata sql.NullString
	if photo.Metadata != nil {
		b, err := json.Marshal(photo.Metadata)
		if err != nil {
			return gallery.Photo{}, fmt.Errorf("encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	photo.CreatedAt = photo.CreatedAt.UTC()

	if _, err := d.db.ExecContext(ctx, insertPhotoStmt, photo.ID, photo.Locator, metadata, photo.CreatedAt); err != nil {
		return gallery.Photo{}, fmt.Errorf("insert: %w", err)
	}
	return photo, nil
}

// GetReactions returns the reactions on photoID sorted by viewer id.
func (d *DB) GetReactions(ctx context.Context, photoID string) ([]gallery.Reaction, error) {
	rows, err := d.db.QueryContext(ctx, listReactionsStmt, photoID)
	if err != nil {
		return nil, gallery.StorageError("query reactions", err)
	}
	reactions, err := scanReactions(rows)
	if err != nil {
		return nil, gallery.StorageError("get reactions", err)
	}
	return reactions, nil
}

// UpsertReaction writes the viewer's reaction and reads back the photo's
// reactions in the same transaction.
func (d *DB) UpsertReaction(ctx context.Context, photoID, viewerID, emoji string) (result []gallery.Reaction, err error) {
	if err := gallery.ValidateReaction(photoID, viewerID, emoji); err != nil {
		return nil, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, gallery.StorageError("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, upsertReactionStmt, photoID, viewerID, emoji, time.Now().UTC()); err != nil {
		return nil, gallery.StorageError("upsert reaction", err)
	}

	rows, err := tx.QueryContext(ctx, listReactionsStmt, photoID)
	if err != nil {
		return nil, gallery.StorageError("query reactions", err)
	}
	reactions, err := scanReactions(rows)
	if err != nil {
		return nil, gallery.StorageError("read reactions", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, gallery.StorageError("commit", err)
	}
	return reactions, nil
}

func scanReactions(rows *sql.Rows) (result []gallery.Reaction, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	reactions := []gallery.Reaction{}
	for rows.Next() {
		var r gallery.Reaction
		if err := rows.Scan(&r.ViewerID, &r.Emoji); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}
