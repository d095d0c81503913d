package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoPhotosAvailable is returned by the rotation when the catalog is empty.
	ErrNoPhotosAvailable = errors.New("no photos available")
	// ErrInvalidRequest reports a missing or malformed identifier.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidReaction reports an emoji outside of the allowed set.
	ErrInvalidReaction = errors.New("invalid reaction")
	// ErrNotFound reports a photo that no longer resolves in storage.
	ErrNotFound = errors.New("not found")
	// ErrStorage reports that the durable layer failed or timed out.
	ErrStorage = errors.New("storage unavailable")
)

// DefaultTimeout bounds a single storage operation when the caller did not
// set a deadline.
const DefaultTimeout = 5 * time.Second

// StorageError tags err as ErrStorage unless it already carries one of the
// domain errors.
func StorageError(op string, err error) error {
	switch {
	case errors.Is(err, ErrStorage),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidReaction):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// WithTimeout applies d to ctx unless ctx already has a deadline.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
