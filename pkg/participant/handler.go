package participant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"artisanmarket/pkg/events"
	"artisanmarket/pkg/logger"
	"artisanmarket/pkg/messaging"
	"artisanmarket/pkg/metrics"

	"github.com/rs/zerolog"
)

var ErrSubjectNotFound = errors.New("rating subject not found")

// SubjectStore - локальная read-модель участника (мастер или услуга)
type SubjectStore interface {
	SubjectExists(ctx context.Context, subjectID string) (bool, error)
	UpdateRating(ctx context.Context, subjectID string, rating float64) error
}

// Averager пересчитывает рейтинг субъекта по опубликованным отзывам
type Averager interface {
	Average(ctx context.Context, subjectID string) (float64, error)
}

// Deduper отсекает повторную доставку ReviewPublished.
// Событие отмечается только после успешной записи рейтинга.
type Deduper interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type Config struct {
	Name           string
	CreatedTopic   string
	PublishedTopic string
	AckTopic       string
	// Subject выбирает из payload идентификатор субъекта этого участника
	Subject       func(events.ReviewPayload) string
	AcceptTimeout time.Duration
}

// Handler реагирует на события саги в два этапа: быстрое подтверждение на ReviewCreated
// и независимая сверка рейтинга на ReviewPublished.
type Handler struct {
	cfg      Config
	channel  messaging.Channel
	store    SubjectStore
	averager Averager
	deduper  Deduper
	log      zerolog.Logger

	mu   sync.Mutex
	subs []messaging.Subscription
}

type Option func(*Handler)

func WithDeduper(d Deduper) Option {
	return func(h *Handler) { h.deduper = d }
}

func New(cfg Config, channel messaging.Channel, store SubjectStore, averager Averager, opts ...Option) *Handler {
	if cfg.CreatedTopic == "" {
		cfg.CreatedTopic = events.TopicReviewCreated
	}
	if cfg.PublishedTopic == "" {
		cfg.PublishedTopic = events.TopicReviewPublished
	}
	if cfg.AckTopic == "" {
		cfg.AckTopic = events.TopicAcknowledgments
	}
	if cfg.AcceptTimeout == 0 {
		cfg.AcceptTimeout = 2 * time.Second
	}

	h := &Handler{
		cfg:      cfg,
		channel:  channel,
		store:    store,
		averager: averager,
		log:      logger.ForParticipant(cfg.Name),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start подписывает участника на оба топика саги
func (h *Handler) Start() error {
	created, err := h.channel.Subscribe(h.cfg.CreatedTopic, h.HandleReviewCreated)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", h.cfg.CreatedTopic, err)
	}

	published, err := h.channel.Subscribe(h.cfg.PublishedTopic, h.HandleReviewPublished)
	if err != nil {
		created.Unsubscribe()
		return fmt.Errorf("failed to subscribe to %s: %w", h.cfg.PublishedTopic, err)
	}

	h.mu.Lock()
	h.subs = append(h.subs, created, published)
	h.mu.Unlock()

	h.log.Info().
		Str("created_topic", h.cfg.CreatedTopic).
		Str("published_topic", h.cfg.PublishedTopic).
		Msg("Participant subscribed")
	return nil
}

func (h *Handler) Stop() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// HandleReviewCreated - фаза accept: никаких пересчетов, только легкая проверка субъекта и ack
func (h *Handler) HandleReviewCreated(ctx context.Context, event events.DomainEvent) {
	ack := events.Acknowledgment{
		OriginalEventID:   event.ID,
		Status:            events.AckProcessed,
		SourceParticipant: h.cfg.Name,
	}

	if err := h.accept(ctx, event); err != nil {
		ack.Status = events.AckFailed
		ack.Error = err.Error()
		h.log.Warn().Err(err).Str("event_id", event.ID).Msg("Rejecting review")
	}

	h.acknowledge(ctx, ack)
}

func (h *Handler) accept(ctx context.Context, event events.DomainEvent) error {
	payload, err := events.DecodeReviewPayload(event)
	if err != nil {
		return err
	}

	subjectID := h.cfg.Subject(payload)
	if subjectID == "" {
		return fmt.Errorf("%w: review %s has no %s subject", ErrSubjectNotFound, payload.ReviewID, h.cfg.Name)
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.cfg.AcceptTimeout)
	defer cancel()

	exists, err := h.store.SubjectExists(checkCtx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to check subject %s: %w", subjectID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}

	return nil
}

func (h *Handler) acknowledge(ctx context.Context, ack events.Acknowledgment) {
	event, err := events.NewAcknowledgmentEvent(ack)
	if err != nil {
		h.log.Error().Err(err).Str("event_id", ack.OriginalEventID).Msg("Failed to build acknowledgment")
		return
	}

	if err := h.channel.Publish(ctx, h.cfg.AckTopic, event); err != nil {
		h.log.Error().Err(err).Str("event_id", ack.OriginalEventID).Msg("Failed to publish acknowledgment")
		return
	}

	metrics.RecordParticipantAck(h.cfg.Name, string(ack.Status))
	h.log.Debug().
		Str("event_id", ack.OriginalEventID).
		Str("status", string(ack.Status)).
		Msg("Acknowledgment published")
}

// HandleReviewPublished - фаза reconcile: пересчет и перезапись локального рейтинга.
// Результат только логируется, координатор его не ждет.
func (h *Handler) HandleReviewPublished(ctx context.Context, event events.DomainEvent) {
	if err := h.reconcile(ctx, event); err != nil {
		metrics.RecordReconciliation(h.cfg.Name, "error")
		h.log.Error().Err(err).Str("event_id", event.ID).Msg("Rating reconciliation failed")
	}
}

func (h *Handler) reconcile(ctx context.Context, event events.DomainEvent) error {
	payload, err := events.DecodeReviewPayload(event)
	if err != nil {
		return err
	}

	subjectID := h.cfg.Subject(payload)
	if subjectID == "" {
		return fmt.Errorf("%w: review %s has no %s subject", ErrSubjectNotFound, payload.ReviewID, h.cfg.Name)
	}

	if h.deduper != nil {
		processed, err := h.deduper.Processed(ctx, event.ID)
		if err != nil {
			// ошибка дедупа не блокирует сверку: перезапись рейтинга идемпотентна
			h.log.Warn().Err(err).Str("event_id", event.ID).Msg("Dedupe check failed")
		} else if processed {
			metrics.RecordReconciliation(h.cfg.Name, "duplicate")
			return nil
		}
	}

	avg, err := h.averager.Average(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to recompute rating for %s: %w", subjectID, err)
	}

	if err := h.store.UpdateRating(ctx, subjectID, avg); err != nil {
		return fmt.Errorf("failed to store rating for %s: %w", subjectID, err)
	}

	if h.deduper != nil {
		if err := h.deduper.MarkProcessed(ctx, event.ID); err != nil {
			h.log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to mark event as processed")
		}
	}

	metrics.RecordReconciliation(h.cfg.Name, "updated")
	h.log.Info().
		Str("review_id", payload.ReviewID).
		Str("subject_id", subjectID).
		Float64("rating", avg).
		Msg("Rating reconciled")
	return nil
}

// ArtisanSubject и ServiceSubject - стандартные селекторы для identity и catalog
func ArtisanSubject(p events.ReviewPayload) string { return p.ArtisanID }

func ServiceSubject(p events.ReviewPayload) string { return p.ServiceID }
