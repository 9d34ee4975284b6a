package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artisanmarket/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const processedEventPrefix = "processed_event"

type redisProcessedEventRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProcessedEventRepository хранит id событий с TTL; позже TTL повтор снова будет обработан
func NewRedisProcessedEventRepository(client *redis.Client, ttl time.Duration) ProcessedEventRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisProcessedEventRepository{client: client, ttl: ttl}
}

// Ключ формата: processed_event:<event_id>
func processedEventKey(eventID string) string {
	return fmt.Sprintf("%s:%s", processedEventPrefix, eventID)
}

// Processed сообщает, была ли сверка по событию уже успешно выполнена
func (r *redisProcessedEventRepository) Processed(ctx context.Context, eventID string) (bool, error) {
	err := r.client.Get(ctx, processedEventKey(eventID)).Err()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss(serviceName, processedEventPrefix)
		return false, nil
	}
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}

	metrics.RecordCacheHit(serviceName, processedEventPrefix)
	return true, nil
}

// MarkProcessed вызывается только после успешной записи рейтинга
func (r *redisProcessedEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	value := time.Now().UTC().Format(time.RFC3339)
	if err := r.client.Set(ctx, processedEventKey(eventID), value, r.ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
