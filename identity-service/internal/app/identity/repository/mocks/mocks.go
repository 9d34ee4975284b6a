package mocks

import (
	"context"

	"artisanmarket/identity-service/internal/app/identity/entity"

	"github.com/stretchr/testify/mock"
)

type MockArtisanRepository struct {
	mock.Mock
}

func (m *MockArtisanRepository) GetByID(ctx context.Context, id string) (*entity.Artisan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Artisan), args.Error(1)
}

func (m *MockArtisanRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockArtisanRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	args := m.Called(ctx, id, rating)
	return args.Error(0)
}
