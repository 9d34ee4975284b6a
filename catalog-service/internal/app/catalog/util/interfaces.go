package util

import (
	"context"
	"time"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
)

// OfferingCache интерфейс для кеша карточек услуг
// Используется для dependency injection и упрощения тестирования
type OfferingCache interface {
	GetOffering(ctx context.Context, id string) (*entity.Offering, error)
	SetOffering(ctx context.Context, offering *entity.Offering, ttl time.Duration) error
	DeleteOffering(ctx context.Context, id string) error
	Close() error
}
