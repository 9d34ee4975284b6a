package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"artisanmarket/identity-service/internal/app/identity/config"
	"artisanmarket/identity-service/internal/app/identity/handler"
	"artisanmarket/identity-service/internal/app/identity/repository"
	"artisanmarket/identity-service/internal/app/identity/service"
	"artisanmarket/pkg/auth"
	"artisanmarket/pkg/events"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/messaging"
	"artisanmarket/pkg/participant"
	"artisanmarket/pkg/rating"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init("identity-service", logLevel)

	// Подключаемся к базе данных PostgreSQL
	db, err := connectDB(context.Background(), cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	logger.Info().Msg("Successfully connected to PostgreSQL database")

	// Подключаемся к Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	logger.Info().Msg("Successfully connected to Redis")

	artisanRepo := repository.NewArtisanRepository(db)
	processedEvents := repository.NewRedisProcessedEventRepository(redisClient, cfg.Participant.DedupeTTL)
	artisanService := service.NewArtisanService(artisanRepo)

	channel := messaging.NewKafkaChannel(messaging.KafkaConfig{
		Brokers: cfg.Broker.Brokers,
		GroupID: cfg.Broker.GroupID,
		Service: "identity-service",
	})
	defer channel.Close()

	// Сверка рейтинга пересчитывает среднее по опубликованным отзывам reviews-service
	source := rating.NewHTTPSource(
		cfg.Participant.ReviewsURL,
		auth.ServiceTokenSource(cfg.JWT.SecretKey, events.ParticipantIdentity),
		rating.WithHTTPClient(&http.Client{Timeout: cfg.Participant.ReviewsTimeout}),
	)

	identityParticipant := participant.New(participant.Config{
		Name:           events.ParticipantIdentity,
		CreatedTopic:   cfg.Broker.CreatedTopic,
		PublishedTopic: cfg.Broker.PublishedTopic,
		AckTopic:       cfg.Broker.AckTopic,
		Subject:        participant.ArtisanSubject,
		AcceptTimeout:  cfg.Participant.AcceptTimeout,
	}, channel, artisanService, rating.NewCalculator(rating.SubjectArtisan, source), participant.WithDeduper(processedEvents))

	if err := identityParticipant.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start identity participant")
	}

	authMiddleware := auth.NewMiddleware(cfg.JWT.SecretKey)
	artisanHandler := handler.NewArtisanHandler(artisanService)
	router := handler.SetupRoutes(artisanHandler, authMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address()).Msg("Starting Identity Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Ожидаем сигнала завершения (graceful shutdown)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	identityParticipant.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server stopped gracefully")
}

// connectDB устанавливает соединение с PostgreSQL используя pgx connection pool
func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	// Пробуем подключиться с повторными попытками
	var pool *pgxpool.Pool
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Failed to connect to database, retrying...")
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
	}

	return pool, nil
}

// connectRedis создает и настраивает Redis клиент
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
}
