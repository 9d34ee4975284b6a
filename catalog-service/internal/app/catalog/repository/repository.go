package repository

import (
	"context"
	"errors"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
)

var (
	ErrOfferingNotFound = errors.New("offering not found")
)

type OfferingRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Offering, error)
	SubjectExists(ctx context.Context, id string) (bool, error)
	UpdateRating(ctx context.Context, id string, rating float64) error
}
