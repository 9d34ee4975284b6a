package service

import (
	"context"
	"errors"
	"fmt"

	"artisanmarket/identity-service/internal/app/identity/entity"
	"artisanmarket/identity-service/internal/app/identity/repository"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/participant"
)

// ArtisanService обслуживает HTTP запросы координатора и служит хранилищем субъекта для участника саги
type ArtisanService struct {
	artisanRepo repository.ArtisanRepository
}

func NewArtisanService(artisanRepo repository.ArtisanRepository) *ArtisanService {
	return &ArtisanService{artisanRepo: artisanRepo}
}

func (s *ArtisanService) GetArtisan(ctx context.Context, id string) (*entity.Artisan, error) {
	artisan, err := s.artisanRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrArtisanNotFound
		}
		return nil, err
	}
	return artisan, nil
}

// UpdateRating - запись рейтинга; ошибка not found совпадает для HTTP и для участника
func (s *ArtisanService) UpdateRating(ctx context.Context, id string, rating float64) error {
	if rating < 0 || rating > 5 {
		return ErrInvalidRating
	}

	if err := s.artisanRepo.UpdateRating(ctx, id, rating); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrArtisanNotFound, participant.ErrSubjectNotFound)
		}
		return err
	}

	logger.Debug().Str("artisan_id", id).Float64("rating", rating).Msg("Artisan rating updated")
	return nil
}

func (s *ArtisanService) SubjectExists(ctx context.Context, id string) (bool, error) {
	return s.artisanRepo.SubjectExists(ctx, id)
}
