package story

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rameshsd/onlycreation-stories/internal/domain"
	"github.com/rameshsd/onlycreation-stories/internal/repositories"
	"github.com/rameshsd/onlycreation-stories/pkg/logger"

	sq "github.com/Masterminds/squirrel"
)

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("StoryRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) GetByID(ctx context.Context, id string) (*domain.StoryItem, error) {
	query, args, err := repositories.SqBuilder.
		Select("id", "owner_id", "media_type", "media_url", "body", "created_at", "expires_at").
		From("stories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	var item domain.StoryItem
	var mediaType string
	err = p.pg.QueryRow(ctx, query, args...).Scan(
		&item.ID,
		&item.OwnerID,
		&mediaType,
		&item.MediaURL,
		&item.Text,
		&item.CreatedAt,
		&item.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	item.MediaType = domain.MediaType(mediaType)
	item.ViewerIDs = make(map[string]struct{})

	if err := p.fillViewers(ctx, map[string]*domain.StoryItem{item.ID: &item}); err != nil {
		return nil, err
	}
	return &item, nil
}

func (p *Pgx) ListActiveByOwners(ctx context.Context, ownerIDs []string, asOf time.Time) ([]domain.StoryItem, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("id", "owner_id", "media_type", "media_url", "body", "created_at", "expires_at").
		From("stories").
		Where(sq.Eq{"owner_id": ownerIDs}).
		Where(sq.Gt{"expires_at": asOf}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.StoryItem
	byID := make(map[string]*domain.StoryItem)
	for rows.Next() {
		var item domain.StoryItem
		var mediaType string
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&mediaType,
			&item.MediaURL,
			&item.Text,
			&item.CreatedAt,
			&item.ExpiresAt,
		); err != nil {
			return nil, err
		}
		item.MediaType = domain.MediaType(mediaType)
		item.ViewerIDs = make(map[string]struct{})
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	if err := p.fillViewers(ctx, byID); err != nil {
		return nil, err
	}
	return items, nil
}

// fillViewers populates ViewerIDs for the given stories in one query.
func (p *Pgx) fillViewers(ctx context.Context, byID map[string]*domain.StoryItem) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	query, args, err := repositories.SqBuilder.
		Select("story_id", "viewer_id").
		From("story_views").
		Where(sq.Eq{"story_id": ids}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var storyID, viewerID string
		if err := rows.Scan(&storyID, &viewerID); err != nil {
			return err
		}
		if item, ok := byID[storyID]; ok {
			item.ViewerIDs[viewerID] = struct{}{}
		}
	}
	return rows.Err()
}

func (p *Pgx) Create(ctx context.Context, item domain.StoryItem) error {
	query, args, err := repositories.SqBuilder.
		Insert("stories").
		Columns("id", "owner_id", "media_type", "media_url", "body", "created_at", "expires_at").
		Values(item.ID, item.OwnerID, string(item.MediaType), item.MediaURL, item.Text, item.CreatedAt, item.ExpiresAt).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCannotCreate
		}
		return err
	}
	return nil
}

func (p *Pgx) AddViewer(ctx context.Context, storyID, viewerID string, asOf time.Time) error {
	query, args, err := repositories.SqBuilder.
		Insert("story_views").
		Columns("story_id", "viewer_id", "viewed_at").
		Values(storyID, viewerID, asOf).
		Suffix("ON CONFLICT (story_id, viewer_id) DO NOTHING").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}

func (p *Pgx) CleanupExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Delete("stories").
		Where(sq.Lt{"expires_at": olderThan}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	tag, err := p.pg.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
