package service

import (
	"context"
	"errors"
	"testing"

	"artisanmarket/identity-service/internal/app/identity/entity"
	"artisanmarket/identity-service/internal/app/identity/repository"
	"artisanmarket/identity-service/internal/app/identity/repository/mocks"
	"artisanmarket/pkg/participant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ArtisanServiceSuite struct {
	suite.Suite
	repo    *mocks.MockArtisanRepository
	service *ArtisanService
	ctx     context.Context
}

func TestArtisanServiceSuite(t *testing.T) {
	suite.Run(t, new(ArtisanServiceSuite))
}

func (s *ArtisanServiceSuite) SetupTest() {
	s.repo = new(mocks.MockArtisanRepository)
	s.service = NewArtisanService(s.repo)
	s.ctx = context.Background()
}

func (s *ArtisanServiceSuite) TearDownTest() {
	s.repo.AssertExpectations(s.T())
}

// Сервис используется участником саги как хранилище субъекта
var _ participant.SubjectStore = (*ArtisanService)(nil)

func (s *ArtisanServiceSuite) TestGetArtisan_Success() {
	s.repo.On("GetByID", s.ctx, "artisan-1").Return(&entity.Artisan{ID: "artisan-1", Rating: 4.2}, nil)

	artisan, err := s.service.GetArtisan(s.ctx, "artisan-1")

	s.NoError(err)
	s.Equal(4.2, artisan.Rating)
}

func (s *ArtisanServiceSuite) TestGetArtisan_NotFound() {
	s.repo.On("GetByID", s.ctx, "missing").Return(nil, repository.ErrNotFound)

	_, err := s.service.GetArtisan(s.ctx, "missing")

	s.ErrorIs(err, ErrArtisanNotFound)
}

func (s *ArtisanServiceSuite) TestUpdateRating_Success() {
	s.repo.On("UpdateRating", s.ctx, "artisan-1", 4.5).Return(nil)

	s.NoError(s.service.UpdateRating(s.ctx, "artisan-1", 4.5))
}

func (s *ArtisanServiceSuite) TestUpdateRating_OutOfRange() {
	for _, rating := range []float64{-0.1, 5.1} {
		s.ErrorIs(s.service.UpdateRating(s.ctx, "artisan-1", rating), ErrInvalidRating)
	}
	s.repo.AssertNotCalled(s.T(), "UpdateRating", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ArtisanServiceSuite) TestUpdateRating_NotFoundMatchesParticipantError() {
	s.repo.On("UpdateRating", s.ctx, "missing", 3.0).Return(repository.ErrNotFound)

	err := s.service.UpdateRating(s.ctx, "missing", 3.0)

	s.ErrorIs(err, ErrArtisanNotFound)
	s.ErrorIs(err, participant.ErrSubjectNotFound)
}

func (s *ArtisanServiceSuite) TestUpdateRating_RepositoryError() {
	s.repo.On("UpdateRating", s.ctx, "artisan-1", 3.0).Return(errors.New("db down"))

	err := s.service.UpdateRating(s.ctx, "artisan-1", 3.0)

	s.Error(err)
	s.NotErrorIs(err, ErrArtisanNotFound)
}

func TestSubjectExists_DelegatesToRepository(t *testing.T) {
	repo := new(mocks.MockArtisanRepository)
	repo.On("SubjectExists", mock.Anything, "artisan-1").Return(true, nil)

	exists, err := NewArtisanService(repo).SubjectExists(context.Background(), "artisan-1")

	assert.NoError(t, err)
	assert.True(t, exists)
}
