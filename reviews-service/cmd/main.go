package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"artisanmarket/pkg/auth"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/messaging"
	"artisanmarket/reviews-service/internal/app/reviews/config"
	"artisanmarket/reviews-service/internal/app/reviews/handler"
	"artisanmarket/reviews-service/internal/app/reviews/infrastructure/httpclient"
	"artisanmarket/reviews-service/internal/app/reviews/processor"
	"artisanmarket/reviews-service/internal/app/reviews/repository"
	"artisanmarket/reviews-service/internal/app/reviews/saga"
	"artisanmarket/reviews-service/internal/app/reviews/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init("reviews-service", logLevel)

	logstashAddr := os.Getenv("LOGSTASH_ADDR")
	if logstashAddr != "" {
		if err := logger.InitLogstash(logstashAddr, "reviews-service", logLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", logstashAddr).Msg("Connected to Logstash")
		}
	}

	mongoClient, err := connectMongoDB(cfg.MongoDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	logger.Info().
		Str("database", cfg.MongoDB.Database).
		Msg("Connected to MongoDB")

	reviewRepo := repository.NewReviewRepository(mongoClient.Database(cfg.MongoDB.Database))

	channel := newChannel(cfg.Broker)
	defer channel.Close()

	aggregator := saga.NewAggregator(channel, cfg.Broker.AckTopic)
	// reader топика подтверждений должен занять позицию до первого ReviewCreated
	if err := aggregator.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to subscribe to acknowledgments")
	}
	defer aggregator.Stop()

	tokens := auth.ServiceTokenSource(cfg.JWT.Secret, "reviews-service")
	identityClient := httpclient.NewIdentityClient(httpclient.Config{
		BaseURL:  cfg.Services.IdentityURL,
		Timeout:  cfg.Services.Timeout,
		Attempts: cfg.Services.Attempts,
		Delay:    cfg.Services.RetryDelay,
	}, tokens)
	catalogClient := httpclient.NewCatalogClient(httpclient.Config{
		BaseURL:  cfg.Services.CatalogURL,
		Timeout:  cfg.Services.Timeout,
		Attempts: cfg.Services.Attempts,
		Delay:    cfg.Services.RetryDelay,
	}, tokens)

	reviewService := service.NewReviewService(reviewRepo, channel, aggregator, identityClient, catalogClient, service.SagaConfig{
		AckTimeout:     cfg.Saga.AckTimeout,
		Participants:   cfg.Saga.Participants,
		CreatedTopic:   cfg.Broker.CreatedTopic,
		PublishedTopic: cfg.Broker.PublishedTopic,
	})
	logger.Info().
		Strs("participants", cfg.Saga.Participants).
		Dur("ack_timeout", cfg.Saga.AckTimeout).
		Msg("Saga coordinator initialized")

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()

	sweeper := processor.NewStaleSagaSweeper(reviewService, cfg.Saga.StaleAfter)
	if err := sweeper.Start(sweeperCtx, cfg.Saga.SweepSchedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start stale saga sweeper")
	}

	authMiddleware := auth.NewMiddleware(cfg.JWT.Secret)
	reviewHandler := handler.NewReviewHandler(reviewService)
	router := handler.SetupRoutes(reviewHandler, authMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Reviews Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Reviews Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopSweeper()
	sweeper.Stop()

	// незавершенные саги записывают свой исход до закрытия канала и Mongo
	if err := reviewService.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Sagas cancelled on shutdown")
	}

	logger.Info().Msg("Reviews Service stopped gracefully")
}

func newChannel(cfg config.BrokerConfig) messaging.Channel {
	if cfg.Kind == "memory" {
		logger.Warn().Msg("Using in-memory message channel, participants must run in this process")
		return messaging.NewMemoryChannel()
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("group_id", cfg.GroupID).
		Msg("Initialized Kafka message channel")
	return messaging.NewKafkaChannel(messaging.KafkaConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Service: "reviews-service",
	})
}

func connectMongoDB(cfg config.MongoDBConfig) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)

	var client *mongo.Client
	var err error

	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err = mongo.Connect(ctx, clientOptions)
		cancel()
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = client.Ping(pingCtx, nil)
			pingCancel()
			if err == nil {
				return client, nil
			}
		}

		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to MongoDB, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, err
}
