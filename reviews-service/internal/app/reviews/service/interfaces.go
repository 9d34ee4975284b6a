package service

import (
	"context"
	"time"

	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"
)

type ReviewServiceInterface interface {
	Submit(ctx context.Context, clientID string, req *entity.CreateReviewRequest) (*entity.Review, error)
	GetReview(ctx context.Context, reviewID string) (*entity.Review, error)
	UpdateReview(ctx context.Context, reviewID string, clientID string, req *entity.UpdateReviewRequest) (*entity.Review, error)
	ResubmitReview(ctx context.Context, reviewID string, clientID string) (*entity.Review, error)
	FlagReview(ctx context.Context, reviewID string, note string) (*entity.Review, error)
	ListPublished(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]rating.PublishedReview, error)
}

// SagaRecoverer используется планировщиком для возврата зависших саг
type SagaRecoverer interface {
	RecoverStaleSagas(ctx context.Context, staleAfter time.Duration) (int, error)
}
