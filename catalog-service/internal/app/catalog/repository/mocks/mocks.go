package mocks

import (
	"context"

	"artisanmarket/catalog-service/internal/app/catalog/entity"

	"github.com/stretchr/testify/mock"
)

type MockOfferingRepository struct {
	mock.Mock
}

func (m *MockOfferingRepository) GetByID(ctx context.Context, id string) (*entity.Offering, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Offering), args.Error(1)
}

func (m *MockOfferingRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockOfferingRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	args := m.Called(ctx, id, rating)
	return args.Error(0)
}
