package story

import (
	"context"
	"errors"
	"time"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
)

var ErrNotFound = errors.New("story not found")
var ErrCannotCreate = errors.New("error create story")

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.StoryItem, error)
	// ListActiveByOwners returns the non-expired stories of the given
	// owners as of asOf, ascending CreatedAt, with ViewerIDs populated.
	ListActiveByOwners(ctx context.Context, ownerIDs []string, asOf time.Time) ([]domain.StoryItem, error)
	Create(ctx context.Context, item domain.StoryItem) error
	// AddViewer appends viewerID to the story's viewer set as of asOf.
	// Re-adding an existing viewer is a no-op.
	AddViewer(ctx context.Context, storyID, viewerID string, asOf time.Time) error
	// CleanupExpired hard-deletes stories whose expiry predates olderThan
	// and returns the number of rows removed. Expiry itself stays a
	// query-time filter; this is storage hygiene only.
	CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error)
}
