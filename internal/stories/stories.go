package stories

import (
	"context"
	"errors"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
)

var (
	ErrInvalidStory = errors.New("invalid story")
	// ErrDuplicateStory means a story with that id already exists.
	ErrDuplicateStory  = errors.New("story already exists")
	ErrStoryNotFound   = errors.New("story not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// Client is the story subsystem's application service: everything the
// HTTP layer and the viewer need, behind one interface.
type Client interface {
	// Tray builds the ordered tray for viewerID over the given owners.
	// Profile lookup failures degrade to undecorated entries.
	Tray(ctx context.Context, viewerID string, relevantUserIDs []string) ([]domain.StoryTrayEntry, error)
	// CreateStory persists a new story and invalidates open subscriptions.
	CreateStory(ctx context.Context, item domain.StoryItem) error
	// RecordView durably marks all of ownerID's current stories as viewed
	// by viewerID and invalidates open subscriptions.
	RecordView(ctx context.Context, ownerID, viewerID string) error
	// MarkStoryViewed appends viewerID to one story's viewer set. Entering
	// an already-expired story is a no-op, not an error.
	MarkStoryViewed(ctx context.Context, storyID, viewerID string) error
	// Profile returns the display profile for id.
	Profile(ctx context.Context, id string) (*domain.Profile, error)
	// UpsertProfile creates or replaces the caller's display profile.
	UpsertProfile(ctx context.Context, p domain.Profile) error
}
