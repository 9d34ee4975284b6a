package infrastructure

import "context"

// IdentityClient - HTTP коллаборатор identity-service: проверка мастера и запись его рейтинга
type IdentityClient interface {
	ArtisanExists(ctx context.Context, artisanID string) (bool, error)
	UpdateArtisanRating(ctx context.Context, artisanID string, rating float64) error
}

// CatalogClient - HTTP коллаборатор catalog-service: проверка услуги и запись ее рейтинга
type CatalogClient interface {
	ServiceExists(ctx context.Context, serviceID string) (bool, error)
	UpdateServiceRating(ctx context.Context, serviceID string, rating float64) error
}
