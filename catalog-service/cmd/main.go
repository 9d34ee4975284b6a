package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"artisanmarket/catalog-service/internal/app/catalog/config"
	"artisanmarket/catalog-service/internal/app/catalog/handler"
	"artisanmarket/catalog-service/internal/app/catalog/repository"
	"artisanmarket/catalog-service/internal/app/catalog/service"
	"artisanmarket/catalog-service/internal/app/catalog/util"
	"artisanmarket/pkg/auth"
	"artisanmarket/pkg/events"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/messaging"
	"artisanmarket/pkg/participant"
	"artisanmarket/pkg/rating"
)

func main() {
	// === ИНИЦИАЛИЗАЦИЯ КОНФИГУРАЦИИ ===
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init("catalog-service", logLevel)

	// === ПОДКЛЮЧЕНИЕ К POSTGRESQL ===
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	logger.Info().Msg("Successfully connected to PostgreSQL")

	// === ПОДКЛЮЧЕНИЕ К REDIS ===
	// Redis кеширует карточки услуг
	redisClient, err := util.NewRedisClient(
		cfg.Redis.Address(),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Msg("Successfully connected to Redis")

	// === РЕПОЗИТОРИИ И СЕРВИСЫ ===
	offeringRepo := repository.NewCachedOfferingRepository(
		repository.NewOfferingRepository(db),
		redisClient,
		cfg.Redis.CacheTTL,
	)
	offeringService := service.NewOfferingService(offeringRepo)

	// === УЧАСТНИК САГИ ===
	channel := messaging.NewKafkaChannel(messaging.KafkaConfig{
		Brokers: cfg.Broker.Brokers,
		GroupID: cfg.Broker.GroupID,
		Service: "catalog-service",
	})
	defer channel.Close()

	source := rating.NewHTTPSource(
		cfg.Participant.ReviewsURL,
		auth.ServiceTokenSource(cfg.JWT.Secret, events.ParticipantCatalog),
		rating.WithHTTPClient(&http.Client{Timeout: cfg.Participant.ReviewsTimeout}),
	)

	catalogParticipant := participant.New(participant.Config{
		Name:           events.ParticipantCatalog,
		CreatedTopic:   cfg.Broker.CreatedTopic,
		PublishedTopic: cfg.Broker.PublishedTopic,
		AckTopic:       cfg.Broker.AckTopic,
		Subject:        participant.ServiceSubject,
		AcceptTimeout:  cfg.Participant.AcceptTimeout,
	}, channel, offeringService, rating.NewCalculator(rating.SubjectService, source))

	if err := catalogParticipant.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start catalog participant")
	}

	// === HTTP ===
	authMiddleware := auth.NewMiddleware(cfg.JWT.Secret)
	offeringHandler := handler.NewOfferingHandler(offeringService)
	router := handler.SetupRoutes(offeringHandler, authMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address()).Msg("Starting Catalog Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// === GRACEFUL SHUTDOWN ===
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Catalog Service...")

	catalogParticipant.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Catalog Service stopped gracefully")
}

// connectDB устанавливает соединение с PostgreSQL используя GORM
// Использует retry logic с 10 попытками для устойчивости при запуске в Docker
func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.Ping(); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(10)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(1 * time.Minute)
				return db, nil
			}
		}
		logger.Warn().Err(err).Int("attempt", i+1).Msg("Failed to connect to database, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}
