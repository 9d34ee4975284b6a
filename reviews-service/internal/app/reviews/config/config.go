package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"artisanmarket/pkg/events"
)

type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	Broker   BrokerConfig
	Saga     SagaConfig
	Services ServicesConfig
	JWT      JWTConfig
}

type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8083)
}

type MongoDBConfig struct {
	URI      string // URI подключения к MongoDB
	Database string // Имя базы данных
}

type BrokerConfig struct {
	Kind    string   // kafka или memory
	Brokers []string // Список брокеров Kafka (формат: host:port)
	GroupID string   // своя у каждого экземпляра координатора

	CreatedTopic   string
	PublishedTopic string
	AckTopic       string
}

type SagaConfig struct {
	AckTimeout    time.Duration
	Participants  []string
	StaleAfter    time.Duration
	SweepSchedule string
}

// ServicesConfig - адреса участников для проверки ссылок и записи рейтингов
type ServicesConfig struct {
	IdentityURL string
	CatalogURL  string
	Timeout     time.Duration
	Attempts    uint
	RetryDelay  time.Duration
}

type JWTConfig struct {
	Secret string // Секретный ключ для проверки JWT токенов (должен совпадать с Identity Service)
}

func Load() (*Config, error) {
	ackTimeout, err := getDurationEnv("SAGA_ACK_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	staleAfter, err := getDurationEnv("SAGA_STALE_AFTER", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := getDurationEnv("SERVICES_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	retryDelay, err := getDurationEnv("SERVICES_RETRY_DELAY", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8083"),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "reviews_service"),
		},
		Broker: BrokerConfig{
			Kind:           getEnv("BROKER", "kafka"),
			Brokers:        getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID:        getEnv("KAFKA_GROUP_ID", "reviews-coordinator-"+hostname),
			CreatedTopic:   getEnv("TOPIC_REVIEW_CREATED", events.TopicReviewCreated),
			PublishedTopic: getEnv("TOPIC_REVIEW_PUBLISHED", events.TopicReviewPublished),
			AckTopic:       getEnv("TOPIC_REVIEW_ACKS", events.TopicAcknowledgments),
		},
		Saga: SagaConfig{
			AckTimeout:    ackTimeout,
			Participants:  getListEnv("SAGA_PARTICIPANTS", []string{events.ParticipantCatalog, events.ParticipantIdentity}),
			StaleAfter:    staleAfter,
			SweepSchedule: getEnv("SAGA_SWEEP_SCHEDULE", "@every 1m"),
		},
		Services: ServicesConfig{
			IdentityURL: getEnv("IDENTITY_SERVICE_URL", "http://localhost:8080"),
			CatalogURL:  getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"),
			Timeout:     httpTimeout,
			Attempts:    3,
			RetryDelay:  retryDelay,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
	}

	if cfg.Broker.Kind != "kafka" && cfg.Broker.Kind != "memory" {
		return nil, fmt.Errorf("invalid BROKER %q: expected kafka or memory", cfg.Broker.Kind)
	}
	if cfg.Saga.AckTimeout <= 0 {
		return nil, fmt.Errorf("invalid SAGA_ACK_TIMEOUT: must be positive")
	}

	return cfg, nil
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

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

// getListEnv читает список через запятую, пустые элементы отбрасываются
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
