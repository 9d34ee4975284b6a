package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"artisanmarket/pkg/events"
)

// Config содержит все настройки приложения Catalog Service
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Broker      BrokerConfig
	Participant ParticipantConfig
	JWT         JWTConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8081)
}

// DatabaseConfig - настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string // disable/require/verify-full
}

// RedisConfig - настройки Redis для кеша карточек услуг
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type BrokerConfig struct {
	Brokers        []string
	GroupID        string
	CreatedTopic   string
	PublishedTopic string
	AckTopic       string
}

// ParticipantConfig - поведение участника саги
type ParticipantConfig struct {
	AcceptTimeout  time.Duration
	ReviewsURL     string
	ReviewsTimeout time.Duration
}

// JWTConfig - секрет должен совпадать с остальными сервисами
type JWTConfig struct {
	Secret string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB value: %w", err)
	}
	cacheTTL, err := getDurationEnv("OFFERING_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	acceptTimeout, err := getDurationEnv("PARTICIPANT_ACCEPT_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	reviewsTimeout, err := getDurationEnv("REVIEWS_SERVICE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8081"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "catalog_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			CacheTTL: cacheTTL,
		},
		Broker: BrokerConfig{
			Brokers:        getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:        getEnv("KAFKA_GROUP_ID", "catalog-participant"),
			CreatedTopic:   getEnv("TOPIC_REVIEW_CREATED", events.TopicReviewCreated),
			PublishedTopic: getEnv("TOPIC_REVIEW_PUBLISHED", events.TopicReviewPublished),
			AckTopic:       getEnv("TOPIC_REVIEW_ACKS", events.TopicAcknowledgments),
		},
		Participant: ParticipantConfig{
			AcceptTimeout:  acceptTimeout,
			ReviewsURL:     getEnv("REVIEWS_SERVICE_URL", "http://localhost:8083"),
			ReviewsTimeout: reviewsTimeout,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
	}, nil
}

// DSN возвращает строку подключения к PostgreSQL в формате libpq
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address возвращает адрес сервера в формате host:port для HTTP сервера
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Address возвращает адрес Redis в формате host:port для подключения
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
