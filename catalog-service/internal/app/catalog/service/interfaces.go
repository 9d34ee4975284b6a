package service

import (
	"context"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
)

type OfferingServiceInterface interface {
	GetOffering(ctx context.Context, id string) (*entity.Offering, error)
	UpdateRating(ctx context.Context, id string, rating float64) error
}
