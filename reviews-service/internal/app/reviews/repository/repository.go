package repository

import (
	"context"
	"time"

	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"
)

// ReviewRepository определяет методы для работы с отзывами в MongoDB
type ReviewRepository interface {
	Create(ctx context.Context, review *entity.Review) error
	GetByID(ctx context.Context, id string) (*entity.Review, error)
	// Update сохраняет отзыв, если его версия не изменилась с момента чтения
	Update(ctx context.Context, review *entity.Review) error
	FindPublishedBySubject(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]entity.Review, error)
	FindStaleProcessing(ctx context.Context, updatedBefore time.Time, limit int64) ([]entity.Review, error)
}
