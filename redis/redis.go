package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// Redis provides photo, reaction and rotation state storage in Redis.
type Redis struct {
	cli *redis.Client
	// StateTTL is how long a viewer's last shown photo is remembered.
	StateTTL time.Duration
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const (
	photoPrefix  = "photos"
	viewerPrefix = "viewers"
)

func photoKey(id string) string {
	return fmt.Sprintf("%s:%s", photoPrefix, id)
}

func reactionsKey(photoID string) string {
	return fmt.Sprintf("%s:%s:reactions", photoPrefix, photoID)
}

func lastShownKey(viewerID string) string {
	return fmt.Sprintf("%s:%s:last_shown", viewerPrefix, viewerID)
}

// ListPhotos returns all photos from Redis. The photos are sorted by their
// creation time in descending order.
func (r *Redis) ListPhotos(ctx context.Context) ([]gallery.Photo, error) {
	keys, err := r.cli.ZRevRange(ctx, photoPrefix, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}

	out := make([]gallery.Photo, 0, len(keys))
	for _, key := range keys {
		var p photo
		if err := r.cli.HGetAll(ctx, key).Scan(&p); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if p.ID == "" {
			// Index entry without its hash.
			continue
		}
		gp, err := p.GalleryPhoto()
		if err != nil {
			return nil, err
		}
		out = append(out, gp)
	}
	return out, nil
}

// InsertPhoto adds the photo hash under photos:PHOTO_ID and indexes the key
// in a sorted set scored by creation time.
func (r *Redis) InsertPhoto(ctx context.Context, p gallery.Photo) (gallery.Photo, error) {
	m, err := newPhoto(p)
	if err != nil {
		return gallery.Photo{}, err
	}
	key := photoKey(p.ID)

	err = r.cli.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("photo %s already exists", p.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, m)
			pipe.ZAdd(ctx, photoPrefix, redis.Z{
				Score:  float64(m.CreatedAt),
				Member: key,
			})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return gallery.Photo{}, fmt.Errorf("redis insert photo: %w", err)
	}
	return p, nil
}

// GetReactions returns the reactions on photoID sorted by viewer id.
func (r *Redis) GetReactions(ctx context.Context, photoID string) ([]gallery.Reaction, error) {
	vals, err := r.cli.HGetAll(ctx, reactionsKey(photoID)).Result()
	if err != nil {
		return nil, gallery.StorageError("hgetall", err)
	}
	return reactions(vals), nil
}

// UpsertReaction sets the viewer's field in the photo's reaction hash and
// reads the hash back in the same MULTI block.
func (r *Redis) UpsertReaction(ctx context.Context, photoID, viewerID, emoji string) ([]gallery.Reaction, error) {
	if err := gallery.ValidateReaction(photoID, viewerID, emoji); err != nil {
		return nil, err
	}

	key := reactionsKey(photoID)
	var all *redis.MapStringStringCmd
	_, err := r.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, viewerID, emoji)
		all = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, gallery.StorageError("could not upsert reaction", err)
	}
	return reactions(all.Val()), nil
}

// LastShown returns the last photo served to viewerID, or "" if none is
// remembered.
func (r *Redis) LastShown(ctx context.Context, viewerID string) (string, error) {
	id, err := r.cli.Get(ctx, lastShownKey(viewerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	return id, nil
}

// SetLastShown remembers photoID for viewerID for StateTTL.
func (r *Redis) SetLastShown(ctx context.Context, viewerID, photoID string) error {
	if err := r.cli.Set(ctx, lastShownKey(viewerID), photoID, r.StateTTL).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}
