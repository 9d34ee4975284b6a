package service

import (
	"context"

	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/repository"
)

// repositorySource отдает калькулятору рейтинга опубликованные отзывы из собственной базы
type repositorySource struct {
	repo repository.ReviewRepository
}

func (s repositorySource) FindPublishedBySubject(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]rating.PublishedReview, error) {
	reviews, err := s.repo.FindPublishedBySubject(ctx, kind, subjectID)
	if err != nil {
		return nil, err
	}

	projections := make([]rating.PublishedReview, 0, len(reviews))
	for i := range reviews {
		projections = append(projections, reviews[i].Projection())
	}
	return projections, nil
}
