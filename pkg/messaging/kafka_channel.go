package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"artisanmarket/pkg/events"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers  []string
	GroupID  string // у каждого экземпляра координатора должна быть своя группа, иначе подтверждения разойдутся по репликам
	Service  string // для метрик
	MinBytes int
	MaxBytes int
}

type topicReader struct {
	reader   *kafka.Reader
	handlers map[uint64]memoryHandler
}

// KafkaChannel держит один reader на топик и раздаёт сообщения подписчикам процесса.
// Offset коммитится после раздачи; отдельной повторной доставки нет.
type KafkaChannel struct {
	cfg    KafkaConfig
	writer *kafka.Writer

	mu     sync.Mutex
	topics map[string]*topicReader
	nextID uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaChannel(cfg KafkaConfig) *KafkaChannel {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		// подтверждения ждут секунды, батч в 10s здесь недопустим
		BatchTimeout: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaChannel{
		cfg:    cfg,
		writer: writer,
		topics: make(map[string]*topicReader),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *KafkaChannel) Publish(ctx context.Context, topic string, event events.DomainEvent) error {
	start := time.Now()

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(event.ID),
		Value: value,
		Time:  time.Now(),
	}

	if err := c.writer.WriteMessages(ctx, message); err != nil {
		metrics.RecordKafkaError(c.cfg.Service, topic, "produce")
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	metrics.RecordKafkaMessageProduced(c.cfg.Service, topic, time.Since(start))
	return nil
}

func (c *KafkaChannel) Subscribe(topic string, handler Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}

	tr, ok := c.topics[topic]
	if !ok {
		tr = &topicReader{
			reader: kafka.NewReader(kafka.ReaderConfig{
				Brokers:        c.cfg.Brokers,
				GroupID:        c.cfg.GroupID,
				Topic:          topic,
				MinBytes:       c.cfg.MinBytes,
				MaxBytes:       c.cfg.MaxBytes,
				StartOffset:    kafka.LastOffset,
				MaxWait:        500 * time.Millisecond,
				ReadBackoffMin: 100 * time.Millisecond,
				ReadBackoffMax: time.Second,
			}),
			handlers: make(map[uint64]memoryHandler),
		}
		c.topics[topic] = tr

		c.wg.Add(1)
		go c.consume(topic, tr.reader)
	}

	c.nextID++
	id := c.nextID

	sub := newSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if tr, ok := c.topics[topic]; ok {
			delete(tr.handlers, id)
		}
	})
	tr.handlers[id] = memoryHandler{sub: sub, handler: handler}

	return sub, nil
}

func (c *KafkaChannel) consume(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		message, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			metrics.RecordKafkaError(c.cfg.Service, topic, "consume")
			logger.Error().Err(err).Str("topic", topic).Msg("Error fetching message")

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.RecordKafkaMessageConsumed(c.cfg.Service, topic, c.cfg.GroupID)
		c.dispatch(topic, message)

		if err := reader.CommitMessages(c.ctx, message); err != nil && c.ctx.Err() == nil {
			metrics.RecordKafkaError(c.cfg.Service, topic, "commit")
			logger.Error().Err(err).Str("topic", topic).Msg("Error committing message")
		}
	}
}

// dispatch разбирает сообщение и синхронно вызывает обработчики топика
func (c *KafkaChannel) dispatch(topic string, message kafka.Message) {
	var event events.DomainEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Int64("offset", message.Offset).Msg("Skipping malformed event")
		return
	}

	c.mu.Lock()
	tr, ok := c.topics[topic]
	var handlers []memoryHandler
	if ok {
		handlers = make([]memoryHandler, 0, len(tr.handlers))
		for _, h := range tr.handlers {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		if h.sub.active() {
			h.handler(c.ctx, event)
		}
	}
}

func (c *KafkaChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	for topic, tr := range c.topics {
		if err := tr.reader.Close(); err != nil {
			logger.Warn().Err(err).Str("topic", topic).Msg("Error closing kafka reader")
		}
	}

	return c.writer.Close()
}
