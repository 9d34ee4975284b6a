package repository

import (
	"context"
	"errors"

	"artisanmarket/identity-service/internal/app/identity/entity"
)

var (
	ErrNotFound = errors.New("not found")
)

type ArtisanRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Artisan, error)
	SubjectExists(ctx context.Context, id string) (bool, error)
	UpdateRating(ctx context.Context, id string, rating float64) error
}

// ProcessedEventRepository помнит уже обработанные события ReviewPublished
type ProcessedEventRepository interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
