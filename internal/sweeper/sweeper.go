// Package sweeper runs the storage hygiene job: stories stay invisible
// past their expiry through query-time filtering alone, and this job
// hard-deletes them once they are long past any viewer's interest.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/story"
	"github.com/rameshsd/onlycreation-stories/internal/stream"
	"github.com/rameshsd/onlycreation-stories/pkg/config"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	StoryRepo story.Repository
	Hub       *stream.Hub
	Logger    logger.Logger
	Config    *config.Config
}

type Sweeper struct {
	StoryRepo story.Repository
	Hub       *stream.Hub
	Logger    logger.Logger
	Config    *config.Config
	Clock     clockwork.Clock
}

func New(opts Opts) *Sweeper {
	return &Sweeper{
		StoryRepo: opts.StoryRepo,
		Hub:       opts.Hub,
		Logger:    opts.Logger,
		Config:    opts.Config,
		Clock:     clockwork.NewRealClock(),
	}
}

// Schedule sets up an hourly job that deletes stories expired longer than
// the configured grace window.
func (s *Sweeper) Schedule(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create sweep scheduler: %w", err)
	}

	grace := time.Duration(s.Config.Stories.SweepGraceHours) * time.Hour

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				s.Logger.Info("Context cancelled, stopping story sweep job")
				return
			}

			sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			rowsDeleted, err := s.StoryRepo.CleanupExpired(sweepCtx, s.Clock.Now().Add(-grace))
			if err != nil {
				s.Logger.Error("Failed to sweep expired stories", "error", err)
				return
			}

			if rowsDeleted > 0 {
				s.Logger.Info("Swept expired stories", "rows_deleted", rowsDeleted)
				s.Hub.Invalidate()
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule story sweep: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		s.Logger.Info("Stopping story sweep scheduler")
		if err := scheduler.Shutdown(); err != nil {
			s.Logger.Error("Failed to shut down sweep scheduler", "error", err)
		}
	}()

	return nil
}
