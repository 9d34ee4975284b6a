package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики (общие для всех сервисов)
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики
// =============================================================================

var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "table"},
)

var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики
// =============================================================================

var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики
// =============================================================================

var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

var KafkaMessagesConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_consumed_total",
		Help: "Total number of Kafka messages consumed",
	},
	[]string{"service", "topic", "group"},
)

var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"}, // operation: produce, consume, commit
)

// =============================================================================
// Saga Метрики (отзывы -> пересчёт рейтингов)
// =============================================================================

// ReviewsSubmitted - принятые отзывы (до завершения саги)
var ReviewsSubmitted = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "reviews_submitted_total",
		Help: "Total number of accepted review submissions",
	},
)

// ReviewsRating - распределение оценок
var ReviewsRating = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "reviews_rating",
		Help:    "Distribution of review ratings",
		Buckets: []float64{1, 2, 3, 4, 5},
	},
	[]string{"subject"}, // artisan, service
)

// SagaOutcomes - терминальные исходы попыток саги
var SagaOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "saga_outcomes_total",
		Help: "Total number of finished saga attempts by outcome",
	},
	[]string{"outcome"}, // published, participant_failure, timeout, error, interrupted
)

// SagaAckWaitDuration - время ожидания подтверждений участников
var SagaAckWaitDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "saga_ack_wait_duration_seconds",
		Help:    "Duration of acknowledgment waits",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
	},
	[]string{"resolution"}, // all_collected, fail_fast, timeout, cancelled
)

// SagasInFlight - саги, выполняющиеся в этом процессе
var SagasInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "sagas_in_flight",
		Help: "Number of saga attempts currently running in this process",
	},
)

// ParticipantAcks - подтверждения, отправленные участниками
var ParticipantAcks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "participant_acks_total",
		Help: "Total number of acknowledgments published by participants",
	},
	[]string{"participant", "status"},
)

// RatingReconciliations - пересчёты рейтинга на стороне участников
var RatingReconciliations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rating_reconciliations_total",
		Help: "Total number of local rating reconciliations",
	},
	[]string{"participant", "status"}, // updated, duplicate, error
)
