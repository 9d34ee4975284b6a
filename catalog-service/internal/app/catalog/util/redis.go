package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"artisanmarket/catalog-service/internal/app/catalog/entity"
	"artisanmarket/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	serviceName       = "catalog-service"
	offeringKeyPrefix = "offering"
)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// NewRedisClientFrom оборачивает уже созданный клиент
func NewRedisClientFrom(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

func offeringKey(id string) string {
	return offeringKeyPrefix + ":" + id
}

func (r *RedisClient) SetOffering(ctx context.Context, offering *entity.Offering, ttl time.Duration) error {
	data, err := json.Marshal(offering)
	if err != nil {
		return fmt.Errorf("failed to marshal offering: %w", err)
	}

	if err := r.client.Set(ctx, offeringKey(offering.ID), data, ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set offering in cache: %w", err)
	}

	return nil
}

// GetOffering возвращает nil без ошибки при промахе
func (r *RedisClient) GetOffering(ctx context.Context, id string) (*entity.Offering, error) {
	data, err := r.client.Get(ctx, offeringKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheMiss(serviceName, offeringKeyPrefix)
			return nil, nil
		}
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get offering from cache: %w", err)
	}

	var offering entity.Offering
	if err := json.Unmarshal(data, &offering); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offering: %w", err)
	}

	metrics.RecordCacheHit(serviceName, offeringKeyPrefix)
	return &offering, nil
}

func (r *RedisClient) DeleteOffering(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, offeringKey(id)).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete offering from cache: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
