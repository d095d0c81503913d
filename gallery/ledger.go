package gallery

import (
	"context"
	"time"
)

// TimedLedger bounds each call of Ledger with Timeout, unless the caller
// already set a deadline.
type TimedLedger struct {
	Ledger  Ledger
	Timeout time.Duration
}

func (l TimedLedger) GetReactions(ctx context.Context, photoID string) ([]Reaction, error) {
	ctx, cancel := WithTimeout(ctx, l.Timeout)
	defer cancel()
	return l.Ledger.GetReactions(ctx, photoID)
}

func (l TimedLedger) UpsertReaction(ctx context.Context, photoID, viewerID, emoji string) ([]Reaction, error) {
	ctx, cancel := WithTimeout(ctx, l.Timeout)
	defer cancel()
	return l.Ledger.UpsertReaction(ctx, photoID, viewerID, emoji)
}
