package gallery

import (
	"fmt"
	"slices"
	"strings"
)

// allowedReactions is the fixed reaction set: like, love, laugh, shock and
// anger, in display order.
var allowedReactions = []string{"👍", "❤️", "😂", "😱", "😡"}

// AllowedReactions returns a copy of the reaction set.
func AllowedReactions() []string {
	return slices.Clone(allowedReactions)
}

// IsAllowedReaction reports whether emoji belongs to the reaction set.
func IsAllowedReaction(emoji string) bool {
	return slices.Contains(allowedReactions, emoji)
}

// ValidateReaction checks an upsert before it reaches a store.
func ValidateReaction(photoID, viewerID, emoji string) error {
	if strings.TrimSpace(photoID) == "" {
		return fmt.Errorf("photo id is required: %w", ErrInvalidRequest)
	}
	if strings.TrimSpace(viewerID) == "" {
		return fmt.Errorf("viewer id is required: %w", ErrInvalidRequest)
	}
	if !IsAllowedReaction(emoji) {
		return fmt.Errorf("%q is not one of %s: %w", emoji, strings.Join(allowedReactions, " "), ErrInvalidReaction)
	}
	return nil
}

// SortReactions orders reactions by viewer id so that every read of the
// same state yields the same sequence.
func SortReactions(reactions []Reaction) {
	slices.SortFunc(reactions, func(a, b Reaction) int {
		return strings.Compare(a.ViewerID, b.ViewerID)
	})
}

// Summarize counts reactions per emoji in display order. Emojis nobody
// picked are reported with a zero count.
func Summarize(reactions []Reaction) []ReactionSummary {
	out := make([]ReactionSummary, len(allowedReactions))
	for i, e := range allowedReactions {
		out[i].Emoji = e
	}
	for _, r := range reactions {
		if i := slices.Index(allowedReactions, r.Emoji); i >= 0 {
			out[i].Count++
		}
	}
	return out
}
