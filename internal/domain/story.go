package domain

import "time"

// StoryTTL is the lifetime of a story from the moment it is posted.
// Expiry is a query-time filter, stories are never edited after creation.
const StoryTTL = 24 * time.Hour

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaText  MediaType = "text"
	MediaLink  MediaType = "link"
)

// StoryItem is one ephemeral post. Immutable after creation except for
// ViewerIDs, which only ever grows.
type StoryItem struct {
	ID        string
	OwnerID   string
	MediaType MediaType
	MediaURL  string
	Text      string
	CreatedAt time.Time
	ExpiresAt time.Time
	ViewerIDs map[string]struct{}
}

func NewStoryItem(id, ownerID string, mediaType MediaType, mediaURL, text string, createdAt time.Time) StoryItem {
	return StoryItem{
		ID:        id,
		OwnerID:   ownerID,
		MediaType: mediaType,
		MediaURL:  mediaURL,
		Text:      text,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(StoryTTL),
		ViewerIDs: make(map[string]struct{}),
	}
}

// SeenBy reports whether viewerID has already observed this item.
func (s StoryItem) SeenBy(viewerID string) bool {
	_, ok := s.ViewerIDs[viewerID]
	return ok
}

// Expired reports whether the item is past its lifetime as of now.
func (s StoryItem) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
