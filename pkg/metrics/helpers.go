package metrics

import (
	"time"
)

type RedisOperation string

const (
	RedisOpGet RedisOperation = "get"
	RedisOpSet RedisOperation = "set"
	RedisOpDel RedisOperation = "del"
)

func RecordCacheHit(service, keyPrefix string) {
	RedisCacheHits.WithLabelValues(service, keyPrefix).Inc()
}

func RecordCacheMiss(service, keyPrefix string) {
	RedisCacheMisses.WithLabelValues(service, keyPrefix).Inc()
}

func RecordRedisError(service string, op RedisOperation) {
	RedisErrors.WithLabelValues(service, string(op)).Inc()
}

func RecordKafkaMessageProduced(service, topic string, duration time.Duration) {
	KafkaMessagesProduced.WithLabelValues(service, topic).Inc()
	KafkaProduceDuration.WithLabelValues(service, topic).Observe(duration.Seconds())
}

func RecordKafkaMessageConsumed(service, topic, group string) {
	KafkaMessagesConsumed.WithLabelValues(service, topic, group).Inc()
}

func RecordKafkaError(service, topic, operation string) {
	KafkaErrors.WithLabelValues(service, topic, operation).Inc()
}

type DbOperation string

const (
	DbOpSelect DbOperation = "select"
	DbOpInsert DbOperation = "insert"
	DbOpUpdate DbOperation = "update"
)

type DbTimer struct {
	service   string
	operation DbOperation
	table     string
	start     time.Time
}

func NewDbTimer(service string, op DbOperation, table string) *DbTimer {
	return &DbTimer{
		service:   service,
		operation: op,
		table:     table,
		start:     time.Now(),
	}
}

// ObserveDuration фиксирует длительность запроса и ошибку, если она была
func (dt *DbTimer) ObserveDuration(err error) {
	DbQueryDuration.WithLabelValues(dt.service, string(dt.operation), dt.table).Observe(time.Since(dt.start).Seconds())
	if err != nil {
		DbErrors.WithLabelValues(dt.service, string(dt.operation)).Inc()
	}
}

func RecordSagaOutcome(outcome string) {
	SagaOutcomes.WithLabelValues(outcome).Inc()
}

func RecordAckWait(resolution string, d time.Duration) {
	SagaAckWaitDuration.WithLabelValues(resolution).Observe(d.Seconds())
}

func RecordParticipantAck(participant, status string) {
	ParticipantAcks.WithLabelValues(participant, status).Inc()
}

func RecordReconciliation(participant, status string) {
	RatingReconciliations.WithLabelValues(participant, status).Inc()
}
