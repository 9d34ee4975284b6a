package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
	"artisanmarket/pkg/metrics"

	"gorm.io/gorm"
)

const (
	serviceName    = "catalog-service"
	offeringsTable = "offerings"
)

type offeringRepository struct {
	db *gorm.DB
}

// NewOfferingRepository создает новый репозиторий услуг
func NewOfferingRepository(db *gorm.DB) OfferingRepository {
	return &offeringRepository{db: db}
}

// GetByID получает услугу по ID
func (r *offeringRepository) GetByID(ctx context.Context, id string) (*entity.Offering, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, offeringsTable)

	var offering entity.Offering
	result := r.db.WithContext(ctx).First(&offering, "id = ?", id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			timer.ObserveDuration(nil)
			return nil, ErrOfferingNotFound
		}
		timer.ObserveDuration(result.Error)
		return nil, fmt.Errorf("failed to get offering: %w", result.Error)
	}

	timer.ObserveDuration(nil)
	return &offering, nil
}

// SubjectExists - легкая проверка для быстрого подтверждения саги
func (r *offeringRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, offeringsTable)

	var count int64
	result := r.db.WithContext(ctx).Model(&entity.Offering{}).Where("id = ?", id).Count(&count)
	timer.ObserveDuration(result.Error)

	if result.Error != nil {
		return false, fmt.Errorf("failed to check offering existence: %w", result.Error)
	}

	return count > 0, nil
}

// UpdateRating точечно обновляет рейтинг услуги
func (r *offeringRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, offeringsTable)

	result := r.db.WithContext(ctx).
		Model(&entity.Offering{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rating":            rating,
			"rating_updated_at": time.Now().UTC(),
		})
	timer.ObserveDuration(result.Error)

	if result.Error != nil {
		return fmt.Errorf("failed to update offering rating: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrOfferingNotFound
	}

	return nil
}
