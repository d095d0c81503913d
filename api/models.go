package api

import "github.com/MilekOfficial/SwapSnap/gallery"

// selectionResponse is the body of a served photo.
type selectionResponse struct {
	Photo     gallery.Photo             `json:"photo"`
	Reactions []gallery.Reaction        `json:"reactions"`
	Summary   []gallery.ReactionSummary `json:"summary"`
}

// reactionsResponse is the reaction set of one photo with per-emoji counts.
type reactionsResponse struct {
	PhotoID   string                    `json:"photo_id"`
	Reactions []gallery.Reaction        `json:"reactions"`
	Summary   []gallery.ReactionSummary `json:"summary"`
}

func nonNil(reactions []gallery.Reaction) []gallery.Reaction {
	if reactions == nil {
		return []gallery.Reaction{}
	}
	return reactions
}
