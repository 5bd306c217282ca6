package storiesimpl

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rameshsd/onlycreation-stories/internal/aggregator"
	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/profile"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/story"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/view"
	"github.com/rameshsd/onlycreation-stories/internal/stories"
	"github.com/rameshsd/onlycreation-stories/internal/stream"
	pkgerrors "github.com/rameshsd/onlycreation-stories/pkg/errors"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	StoryRepo   story.Repository
	ProfileRepo profile.Repository
	ViewRepo    view.Repository
	Hub         *stream.Hub
	Logger      logger.Logger
}

type StoriesImpl struct {
	StoryRepo   story.Repository
	ProfileRepo profile.Repository
	ViewRepo    view.Repository
	Hub         *stream.Hub
	Logger      logger.Logger
	Clock       clockwork.Clock
}

func New(opts Opts) *StoriesImpl {
	return &StoriesImpl{
		StoryRepo:   opts.StoryRepo,
		ProfileRepo: opts.ProfileRepo,
		ViewRepo:    opts.ViewRepo,
		Hub:         opts.Hub,
		Logger:      opts.Logger,
		Clock:       clockwork.NewRealClock(),
	}
}

var _ stories.Client = (*StoriesImpl)(nil)

func (s *StoriesImpl) Tray(ctx context.Context, viewerID string, relevantUserIDs []string) ([]domain.StoryTrayEntry, error) {
	owners := make([]string, 0, len(relevantUserIDs)+1)
	relevant := make(map[string]struct{}, len(relevantUserIDs))
	for _, id := range relevantUserIDs {
		if id == viewerID {
			continue
		}
		if _, dup := relevant[id]; dup {
			continue
		}
		relevant[id] = struct{}{}
		owners = append(owners, id)
	}
	owners = append(owners, viewerID)

	items, err := s.StoryRepo.ListActiveByOwners(ctx, owners, s.Clock.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list active stories")
	}

	// A profile miss never fails the tray; entries simply lose their
	// decoration.
	profiles, err := s.ProfileRepo.Resolve(ctx, owners)
	if err != nil {
		s.Logger.Warn("Failed to resolve profiles for tray, degrading", "viewer_id", viewerID, "error", err)
		profiles = nil
	}

	return aggregator.Aggregate(items, relevant, viewerID, profiles), nil
}

func (s *StoriesImpl) CreateStory(ctx context.Context, item domain.StoryItem) error {
	if item.ID == "" || item.OwnerID == "" {
		return stories.ErrInvalidStory
	}
	switch item.MediaType {
	case domain.MediaImage, domain.MediaVideo, domain.MediaLink:
		if item.MediaURL == "" {
			return stories.ErrInvalidStory
		}
	case domain.MediaText:
		if item.Text == "" {
			return stories.ErrInvalidStory
		}
	default:
		return stories.ErrInvalidStory
	}

	if err := s.StoryRepo.Create(ctx, item); err != nil {
		if errors.Is(err, story.ErrCannotCreate) {
			return stories.ErrDuplicateStory
		}
		return pkgerrors.Wrap(err, "failed to create story")
	}

	s.Logger.Info("Story created", "story_id", item.ID, "owner_id", item.OwnerID, "media_type", string(item.MediaType))
	s.Hub.Invalidate()
	return nil
}

func (s *StoriesImpl) RecordView(ctx context.Context, ownerID, viewerID string) error {
	if err := s.ViewRepo.RecordView(ctx, ownerID, viewerID, s.Clock.Now()); err != nil {
		return pkgerrors.WrapWithCode(err, "view_sink", "failed to record story view")
	}
	s.Hub.Invalidate()
	return nil
}

func (s *StoriesImpl) MarkStoryViewed(ctx context.Context, storyID, viewerID string) error {
	item, err := s.StoryRepo.GetByID(ctx, storyID)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return stories.ErrStoryNotFound
		}
		return pkgerrors.WrapWithCode(err, "view_sink", "failed to load story")
	}

	now := s.Clock.Now()
	if item.Expired(now) {
		// The session outlived the story; nothing left to mark.
		s.Logger.Debug("Skipped view of expired story", "story_id", storyID, "viewer_id", viewerID)
		return nil
	}

	if err := s.StoryRepo.AddViewer(ctx, storyID, viewerID, now); err != nil {
		return pkgerrors.WrapWithCode(err, "view_sink", "failed to add story viewer")
	}
	s.Hub.Invalidate()
	return nil
}

func (s *StoriesImpl) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.ProfileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, stories.ErrProfileNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to load profile")
	}
	return p, nil
}

func (s *StoriesImpl) UpsertProfile(ctx context.Context, p domain.Profile) error {
	if p.ID == "" {
		return pkgerrors.ErrInvalidInput
	}
	if err := s.ProfileRepo.Upsert(ctx, p); err != nil {
		return pkgerrors.Wrap(err, "failed to upsert profile")
	}
	s.Logger.Info("Profile upserted", "profile_id", p.ID)
	return nil
}
