package mocks

import (
	"context"
	"time"

	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"

	"github.com/stretchr/testify/mock"
)

// MockReviewRepository мок для ReviewRepository
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewRepository) GetByID(ctx context.Context, id string) (*entity.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Review), args.Error(1)
}

func (m *MockReviewRepository) Update(ctx context.Context, review *entity.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockReviewRepository) FindPublishedBySubject(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]entity.Review, error) {
	args := m.Called(ctx, kind, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}

func (m *MockReviewRepository) FindStaleProcessing(ctx context.Context, updatedBefore time.Time, limit int64) ([]entity.Review, error) {
	args := m.Called(ctx, updatedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Review), args.Error(1)
}
