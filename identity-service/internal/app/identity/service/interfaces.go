package service

import (
	"context"

	"artisanmarket/identity-service/internal/app/identity/entity"
)

type ArtisanServiceInterface interface {
	GetArtisan(ctx context.Context, id string) (*entity.Artisan, error)
	UpdateRating(ctx context.Context, id string, rating float64) error
}
