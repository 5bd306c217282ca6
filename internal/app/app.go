package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "github.com/rameshsd/onlycreation-stories/internal/migrations"
	"github.com/rameshsd/onlycreation-stories/internal/pgx"
	repositories "github.com/rameshsd/onlycreation-stories/internal/repositories/fx"
	"github.com/rameshsd/onlycreation-stories/internal/repositories/story"
	"github.com/rameshsd/onlycreation-stories/internal/server"
	"github.com/rameshsd/onlycreation-stories/internal/stories"
	"github.com/rameshsd/onlycreation-stories/internal/stories/storiesimpl"
	"github.com/rameshsd/onlycreation-stories/internal/stream"
	"github.com/rameshsd/onlycreation-stories/internal/sweeper"
	"github.com/rameshsd/onlycreation-stories/pkg/config"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
	),
	fx.Provide(
		newHub,
		sweeper.New,
		fx.Annotate(
			storiesimpl.New,
			fx.As(new(stories.Client)),
		),
	),
	repositories.Module,
	fx.Invoke(migrate),
	fx.Invoke(server.New),
	fx.Invoke(run),
)

func newHub(cfg *config.Config, repo story.Repository, log logger.Logger) *stream.Hub {
	return stream.NewHub(stream.Opts{
		Repo:    repo,
		Logger:  log,
		Refresh: time.Duration(cfg.Stories.RefreshSeconds) * time.Second,
	})
}

func migrate(c *config.Config, log logger.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := sql.Open("postgres", c.GetDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.Up(db, "."); err != nil {
		return err
	}

	log.Info("Database migrations applied")
	return nil
}

func run(lc fx.Lifecycle, log logger.Logger, sw *sweeper.Sweeper) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := sw.Schedule(ctx); err != nil {
				return fmt.Errorf("failed to start story sweeper: %w", err)
			}
			log.Info("Story service started")
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
