package repository

import (
	"context"
	"time"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
	"artisanmarket/catalog-service/internal/app/catalog/util"
	"artisanmarket/pkg/logger"
)

// cachedOfferingRepository - cache-aside поверх репозитория.
// Ошибки кеша не ломают чтение, запись рейтинга сбрасывает карточку.
type cachedOfferingRepository struct {
	next  OfferingRepository
	cache util.OfferingCache
	ttl   time.Duration
}

func NewCachedOfferingRepository(next OfferingRepository, cache util.OfferingCache, ttl time.Duration) OfferingRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &cachedOfferingRepository{next: next, cache: cache, ttl: ttl}
}

func (r *cachedOfferingRepository) GetByID(ctx context.Context, id string) (*entity.Offering, error) {
	cached, err := r.cache.GetOffering(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Str("service_id", id).Msg("Offering cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	offering, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetOffering(ctx, offering, r.ttl); err != nil {
		logger.Warn().Err(err).Str("service_id", id).Msg("Offering cache write failed")
	}
	return offering, nil
}

// SubjectExists отвечает из кеша, если карточка там есть
func (r *cachedOfferingRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	if cached, err := r.cache.GetOffering(ctx, id); err == nil && cached != nil {
		return true, nil
	}
	return r.next.SubjectExists(ctx, id)
}

func (r *cachedOfferingRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	if err := r.next.UpdateRating(ctx, id, rating); err != nil {
		return err
	}

	if err := r.cache.DeleteOffering(ctx, id); err != nil {
		logger.Warn().Err(err).Str("service_id", id).Msg("Offering cache invalidation failed")
	}
	return nil
}
