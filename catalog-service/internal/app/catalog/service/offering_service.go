package service

import (
	"context"
	"errors"
	"fmt"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
	"artisanmarket/catalog-service/internal/app/catalog/repository"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/participant"
)

// OfferingService - HTTP API услуг и хранилище субъекта для участника catalog
type OfferingService struct {
	offeringRepo repository.OfferingRepository
}

func NewOfferingService(offeringRepo repository.OfferingRepository) *OfferingService {
	return &OfferingService{offeringRepo: offeringRepo}
}

func (s *OfferingService) GetOffering(ctx context.Context, id string) (*entity.Offering, error) {
	offering, err := s.offeringRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOfferingNotFound) {
			return nil, ErrOfferingNotFound
		}
		return nil, err
	}
	return offering, nil
}

func (s *OfferingService) UpdateRating(ctx context.Context, id string, rating float64) error {
	if rating < 0 || rating > 5 {
		return ErrInvalidRating
	}

	if err := s.offeringRepo.UpdateRating(ctx, id, rating); err != nil {
		if errors.Is(err, repository.ErrOfferingNotFound) {
			return fmt.Errorf("%w: %w", ErrOfferingNotFound, participant.ErrSubjectNotFound)
		}
		return err
	}

	logger.Debug().Str("service_id", id).Float64("rating", rating).Msg("Offering rating updated")
	return nil
}

func (s *OfferingService) SubjectExists(ctx context.Context, id string) (bool, error) {
	return s.offeringRepo.SubjectExists(ctx, id)
}
