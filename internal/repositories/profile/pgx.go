package profile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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
		logger: logger.WithComponent("ProfileRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Resolve(ctx context.Context, ids []string) (map[string]domain.Profile, error) {
	if len(ids) == 0 {
		return map[string]domain.Profile{}, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("id", "display_name", "avatar_url").
		From("profiles").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.Profile, len(ids))
	for rows.Next() {
		var pr domain.Profile
		if err := rows.Scan(&pr.ID, &pr.DisplayName, &pr.AvatarURL); err != nil {
			return nil, err
		}
		result[pr.ID] = pr
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pgx) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query, args, err := repositories.SqBuilder.
		Select("id", "display_name", "avatar_url").
		From("profiles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	var pr domain.Profile
	err = p.pg.QueryRow(ctx, query, args...).Scan(&pr.ID, &pr.DisplayName, &pr.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pr, nil
}

func (p *Pgx) Upsert(ctx context.Context, pr domain.Profile) error {
	query, args, err := repositories.SqBuilder.
		Insert("profiles").
		Columns("id", "display_name", "avatar_url").
		Values(pr.ID, pr.DisplayName, pr.AvatarURL).
		Suffix("ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	return err
}
