package repository

import (
	"context"
	"errors"
	"fmt"

	"artisanmarket/identity-service/internal/app/identity/entity"
	"artisanmarket/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	serviceName   = "identity-service"
	artisansTable = "artisans"
)

// dbtx - часть pgxpool.Pool, которой пользуется репозиторий
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type artisanRepository struct {
	db dbtx
}

// NewArtisanRepository принимает *pgxpool.Pool
func NewArtisanRepository(db dbtx) ArtisanRepository {
	return &artisanRepository{db: db}
}

func (r *artisanRepository) GetByID(ctx context.Context, id string) (*entity.Artisan, error) {
	query := `SELECT id, name, rating, rating_updated_at, created_at FROM artisans WHERE id = $1`

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, artisansTable)
	var artisan entity.Artisan
	err := r.db.QueryRow(ctx, query, id).Scan(
		&artisan.ID,
		&artisan.Name,
		&artisan.Rating,
		&artisan.RatingUpdatedAt,
		&artisan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		timer.ObserveDuration(nil)
		return nil, ErrNotFound
	}
	timer.ObserveDuration(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get artisan by id: %w", err)
	}

	return &artisan, nil
}

// SubjectExists - легкая проверка для быстрого подтверждения саги
func (r *artisanRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM artisans WHERE id = $1)`

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, artisansTable)
	var exists bool
	err := r.db.QueryRow(ctx, query, id).Scan(&exists)
	timer.ObserveDuration(err)
	if err != nil {
		return false, fmt.Errorf("failed to check artisan existence: %w", err)
	}

	return exists, nil
}

// UpdateRating перезаписывает рейтинг; повторная запись того же значения ничего не меняет по смыслу
func (r *artisanRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	query := `UPDATE artisans SET rating = $1, rating_updated_at = NOW() WHERE id = $2`

	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, artisansTable)
	result, err := r.db.Exec(ctx, query, rating, id)
	timer.ObserveDuration(err)
	if err != nil {
		return fmt.Errorf("failed to update artisan rating: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
