package gallery

import (
	"context"
	"errors"
	"testing"
	"time"
)

type deadlineLedger struct {
	deadlines []time.Duration
}

func (l *deadlineLedger) record(ctx context.Context) error {
	d, ok := ctx.Deadline()
	if !ok {
		return errors.New("no deadline")
	}
	l.deadlines = append(l.deadlines, time.Until(d))
	return nil
}

func (l *deadlineLedger) GetReactions(ctx context.Context, _ string) ([]Reaction, error) {
	return nil, l.record(ctx)
}

func (l *deadlineLedger) UpsertReaction(ctx context.Context, _, _, _ string) ([]Reaction, error) {
	return nil, l.record(ctx)
}

func TestTimedLedger(t *testing.T) {
	inner := &deadlineLedger{}
	l := TimedLedger{Ledger: inner, Timeout: time.Minute}

	if _, err := l.GetReactions(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.UpsertReaction(context.Background(), "a", "v", "👍"); err != nil {
		t.Fatal(err)
	}

	// An earlier deadline set by the caller is kept.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := l.GetReactions(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if len(inner.deadlines) != 3 {
		t.Fatalf("Got %d calls, want 3", len(inner.deadlines))
	}
	for i, d := range inner.deadlines[:2] {
		if d <= 30*time.Second || d > time.Minute {
			t.Errorf("Call %d: got deadline in %v, want about a minute", i, d)
		}
	}
	if d := inner.deadlines[2]; d > time.Second {
		t.Errorf("Got deadline in %v, want the caller's second", d)
	}
}
