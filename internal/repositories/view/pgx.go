package view

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"
)

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("ViewRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) RecordView(ctx context.Context, ownerID, viewerID string, asOf time.Time) error {
	// One statement covering all of the owner's active stories. Squirrel
	// has no INSERT ... SELECT, so this one stays handwritten.
	const query = `
		INSERT INTO story_views (story_id, viewer_id, viewed_at)
		SELECT id, $2, $3
		FROM stories
		WHERE owner_id = $1 AND expires_at > $3
		ON CONFLICT (story_id, viewer_id) DO NOTHING
	`

	_, err := p.pg.Exec(ctx, query, ownerID, viewerID, asOf)
	return err
}
