package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"artisanmarket/pkg/events"
)

// Config содержит все настройки приложения
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
	Host string
	Port string
}

// DatabaseConfig - настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig - настройки подключения к Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
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
	DedupeTTL      time.Duration
	ReviewsURL     string // источник опубликованных отзывов для сверки рейтинга
	ReviewsTimeout time.Duration
}

type JWTConfig struct {
	SecretKey string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	acceptTimeout, err := getDurationEnv("PARTICIPANT_ACCEPT_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	dedupeTTL, err := getDurationEnv("PARTICIPANT_DEDUPE_TTL", 24*time.Hour)
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
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "identity_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Broker: BrokerConfig{
			Brokers:        getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:        getEnv("KAFKA_GROUP_ID", "identity-participant"),
			CreatedTopic:   getEnv("TOPIC_REVIEW_CREATED", events.TopicReviewCreated),
			PublishedTopic: getEnv("TOPIC_REVIEW_PUBLISHED", events.TopicReviewPublished),
			AckTopic:       getEnv("TOPIC_REVIEW_ACKS", events.TopicAcknowledgments),
		},
		Participant: ParticipantConfig{
			AcceptTimeout:  acceptTimeout,
			DedupeTTL:      dedupeTTL,
			ReviewsURL:     getEnv("REVIEWS_SERVICE_URL", "http://localhost:8083"),
			ReviewsTimeout: reviewsTimeout,
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		},
	}, nil
}

// DSN возвращает строку подключения к PostgreSQL в формате URL для pgx
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Address возвращает адрес Redis в формате host:port
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Address возвращает адрес сервера в формате host:port
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает значение переменной окружения как int
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
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
