package profile

import (
	"context"
	"errors"

	"github.com/rameshsd/onlycreation-stories/internal/domain"
)

var ErrNotFound = errors.New("profile not found")

//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=mocks/mock.go

type Repository interface {
	// Resolve returns the profiles for the given ids. Missing ids are
	// simply absent from the result, never an error.
	Resolve(ctx context.Context, ids []string) (map[string]domain.Profile, error)
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, p domain.Profile) error
}
