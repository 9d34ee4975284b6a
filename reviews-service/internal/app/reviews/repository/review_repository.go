package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/metrics"
	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrReviewNotFound      = errors.New("review not found")
	ErrConcurrencyConflict = errors.New("review was modified concurrently")
)

const (
	serviceName    = "reviews-service"
	collectionName = "reviews"
)

type reviewRepository struct {
	collection *mongo.Collection
}

// NewReviewRepository создает репозиторий и индексы под выборки саги и рейтинга
func NewReviewRepository(db *mongo.Database) ReviewRepository {
	collection := db.Collection(collectionName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "artisan_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("artisan_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "service_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("service_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
			Options: options.Index().SetName("status_updated_idx"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		// индекс может уже существовать
		logger.Warn().Err(err).Msg("Failed to create review indexes")
	}

	return newReviewRepository(collection)
}

func newReviewRepository(collection *mongo.Collection) *reviewRepository {
	return &reviewRepository{collection: collection}
}

func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, collectionName)

	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	review.Version = 1

	_, err := r.collection.InsertOne(ctx, review)
	timer.ObserveDuration(err)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id string) (*entity.Review, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, collectionName)

	var review entity.Review
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		timer.ObserveDuration(nil)
		return nil, ErrReviewNotFound
	}
	timer.ObserveDuration(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &review, nil
}

// Update заменяет документ целиком по (_id, version) и увеличивает версию.
// Промах по фильтру означает либо отсутствие отзыва, либо параллельную запись.
func (r *reviewRepository) Update(ctx context.Context, review *entity.Review) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpUpdate, collectionName)

	next := *review
	next.Version = review.Version + 1
	next.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": review.ID, "version": review.Version}
	result, err := r.collection.ReplaceOne(ctx, filter, &next)
	timer.ObserveDuration(err)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	if result.MatchedCount == 0 {
		return r.missReason(ctx, review.ID)
	}

	review.Version = next.Version
	review.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *reviewRepository) missReason(ctx context.Context, id string) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrReviewNotFound
	case err != nil:
		return fmt.Errorf("failed to check review after update miss: %w", err)
	default:
		return ErrConcurrencyConflict
	}
}

func (r *reviewRepository) FindPublishedBySubject(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]entity.Review, error) {
	filter := bson.M{"status": entity.StatusPublished}
	switch kind {
	case rating.SubjectArtisan:
		filter["artisan_id"] = subjectID
	case rating.SubjectService:
		filter["service_id"] = subjectID
	default:
		return nil, fmt.Errorf("%w: %s", rating.ErrUnknownSubjectKind, kind)
	}

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// FindStaleProcessing выбирает отзывы, зависшие в processing дольше допустимого
func (r *reviewRepository) FindStaleProcessing(ctx context.Context, updatedBefore time.Time, limit int64) ([]entity.Review, error) {
	filter := bson.M{
		"status":     entity.StatusProcessing,
		"updated_at": bson.M{"$lt": updatedBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetLimit(limit)

	return r.find(ctx, filter, opts)
}

func (r *reviewRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]entity.Review, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, collectionName)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		timer.ObserveDuration(err)
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []entity.Review{}
	err = cursor.All(ctx, &reviews)
	timer.ObserveDuration(err)
	if err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	return reviews, nil
}
