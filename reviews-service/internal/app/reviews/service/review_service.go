package service

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
	"artisanmarket/pkg/rating"
	"artisanmarket/reviews-service/internal/app/reviews/entity"
	"artisanmarket/reviews-service/internal/app/reviews/infrastructure"
	"artisanmarket/reviews-service/internal/app/reviews/repository"
	"artisanmarket/reviews-service/internal/app/reviews/saga"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

type SagaConfig struct {
	AckTimeout     time.Duration
	Participants   []string
	CreatedTopic   string
	PublishedTopic string
	// WriteTimeout ограничивает запись исхода попытки, даже если контекст саги уже отменен
	WriteTimeout time.Duration
}

func (c SagaConfig) withDefaults() SagaConfig {
	if c.AckTimeout == 0 {
		c.AckTimeout = 15 * time.Second
	}
	if c.Participants == nil {
		c.Participants = []string{events.ParticipantCatalog, events.ParticipantIdentity}
	}
	if c.CreatedTopic == "" {
		c.CreatedTopic = events.TopicReviewCreated
	}
	if c.PublishedTopic == "" {
		c.PublishedTopic = events.TopicReviewPublished
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// ReviewService - координатор саги публикации отзыва.
// Submit только принимает отзыв; сага идет в фоне, итог виден по статусу отзыва.
type ReviewService struct {
	reviewRepo repository.ReviewRepository
	channel    messaging.Channel
	aggregator *saga.Aggregator
	identity   infrastructure.IdentityClient
	catalog    infrastructure.CatalogClient

	artisanRatings *rating.Calculator
	serviceRatings *rating.Calculator

	cfg SagaConfig

	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight mapset.Set[string]
	closing  *atomic.Bool
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	channel messaging.Channel,
	aggregator *saga.Aggregator,
	identity infrastructure.IdentityClient,
	catalog infrastructure.CatalogClient,
	cfg SagaConfig,
) *ReviewService {
	source := repositorySource{repo: reviewRepo}
	ctx, cancel := context.WithCancel(context.Background())

	return &ReviewService{
		reviewRepo:     reviewRepo,
		channel:        channel,
		aggregator:     aggregator,
		identity:       identity,
		catalog:        catalog,
		artisanRatings: rating.NewCalculator(rating.SubjectArtisan, source),
		serviceRatings: rating.NewCalculator(rating.SubjectService, source),
		cfg:            cfg.withDefaults(),
		baseCtx:        ctx,
		cancel:         cancel,
		inFlight:       mapset.NewSet[string](),
		closing:        atomic.NewBool(false),
	}
}

// Submit проверяет отзыв и ссылки, сохраняет его в pending и запускает сагу в фоне
func (s *ReviewService) Submit(ctx context.Context, clientID string, req *entity.CreateReviewRequest) (*entity.Review, error) {
	if s.closing.Load() {
		return nil, ErrShuttingDown
	}

	review, err := entity.NewReview(entity.NewReviewParams{
		OrderID:       req.OrderID,
		ArtisanID:     req.ArtisanID,
		ClientID:      clientID,
		ServiceID:     req.ServiceID,
		Feedback:      entity.Feedback{Comment: req.Comment, Attachments: req.Attachments},
		ArtisanRating: req.ArtisanRating.ToRating(),
		ServiceRating: req.ServiceRating.ToRating(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, review.ArtisanID, review.ServiceID); err != nil {
		return nil, err
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("%w: failed to create review: %w", ErrPersistence, err)
	}

	metrics.ReviewsSubmitted.Inc()
	metrics.ReviewsRating.WithLabelValues(string(rating.SubjectArtisan)).Observe(float64(review.ArtisanRating.Value))
	metrics.ReviewsRating.WithLabelValues(string(rating.SubjectService)).Observe(float64(review.ServiceRating.Value))

	if err := s.launch(review); err != nil {
		// отзыв сохранен в pending, его можно отправить повторно
		logger.Warn().Err(err).Str("review_id", review.ID).Msg("Saga not launched")
	}

	return review, nil
}

// checkReferences параллельно спрашивает identity и catalog о существовании ссылок
func (s *ReviewService) checkReferences(ctx context.Context, artisanID, serviceID string) error {
	var artisanExists, serviceExists bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exists, err := s.identity.ArtisanExists(gctx, artisanID)
		if err != nil {
			return fmt.Errorf("failed to check artisan %s: %w", artisanID, err)
		}
		artisanExists = exists
		return nil
	})
	g.Go(func() error {
		exists, err := s.catalog.ServiceExists(gctx, serviceID)
		if err != nil {
			return fmt.Errorf("failed to check service %s: %w", serviceID, err)
		}
		serviceExists = exists
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if !artisanExists {
		return fmt.Errorf("%w: artisan %s", ErrReferenceNotFound, artisanID)
	}
	if !serviceExists {
		return fmt.Errorf("%w: service %s", ErrReferenceNotFound, serviceID)
	}
	return nil
}

// launch запускает сагу без ожидания. Сага получает свою копию отзыва.
func (s *ReviewService) launch(review *entity.Review) error {
	if err := s.reserve(review.ID); err != nil {
		return err
	}
	s.start(review)
	return nil
}

// reserve занимает слот саги для отзыва до того, как правка будет сохранена
func (s *ReviewService) reserve(reviewID string) error {
	if s.closing.Load() {
		return ErrShuttingDown
	}
	if !s.inFlight.Add(reviewID) {
		return ErrSagaInProgress
	}
	return nil
}

// start запускает сагу по уже занятому слоту; слот освобождается по ее завершении
func (s *ReviewService) start(review *entity.Review) {
	s.wg.Add(1)
	metrics.SagasInFlight.Inc()

	go func(review *entity.Review) {
		defer func() {
			s.inFlight.Remove(review.ID)
			metrics.SagasInFlight.Dec()
			s.wg.Done()
		}()

		if err := s.runSaga(s.baseCtx, review); err != nil {
			logger.Error().
				Err(err).
				Str("review_id", review.ID).
				Msg("Saga attempt failed")
		}
	}(review.Clone())
}

// runSaga проводит одну попытку: processing -> ждем ack -> write-through -> published.
// Любая неудача возвращает отзыв в pending с записанной причиной.
func (s *ReviewService) runSaga(ctx context.Context, review *entity.Review) error {
	if err := review.MarkAsProcessing(); err != nil {
		metrics.RecordSagaOutcome("error")
		return err
	}
	if err := s.reviewRepo.Update(ctx, review); err != nil {
		metrics.RecordSagaOutcome("error")
		return fmt.Errorf("%w: failed to mark review as processing: %w", ErrPersistence, err)
	}

	event, err := events.NewDomainEvent(events.ReviewCreated, 1, review.Payload())
	if err != nil {
		return s.fail(ctx, review, err, err.Error(), "")
	}

	log := logger.ForSaga(review.ID, event.ID)
	log.Info().Strs("participants", s.cfg.Participants).Msg("Saga started")

	wait, err := s.aggregator.Begin(event.ID, s.cfg.Participants, s.cfg.AckTimeout)
	if err != nil {
		return s.fail(ctx, review, err, err.Error(), "")
	}

	if err := s.channel.Publish(ctx, s.cfg.CreatedTopic, event); err != nil {
		wait.Cancel()
		return s.fail(ctx, review, err, "failed to publish "+events.ReviewCreated+": "+err.Error(), "")
	}

	result := wait.Result(ctx)
	log.Debug().
		Str("resolution", result.Resolution).
		Dur("elapsed", result.Elapsed).
		Bool("success", result.Success).
		Msg("Acknowledgment wait resolved")

	if !result.Success {
		return s.fail(ctx, review, resultError(result), result.Error, result.FailingParticipant)
	}

	if err := s.ensureUnchanged(ctx, review); err != nil {
		metrics.RecordSagaOutcome(outcomeOf(err))
		log.Warn().Err(err).Msg("Review changed during saga, skipping write-through")
		return err
	}

	if err := s.writeThrough(ctx, review); err != nil {
		return s.fail(ctx, review, err, err.Error(), "")
	}

	if err := review.MarkAsPublished(); err != nil {
		metrics.RecordSagaOutcome("error")
		return err
	}
	if err := s.reviewRepo.Update(ctx, review); err != nil {
		// отзыв остается в processing; его вернет в pending планировщик зависших саг
		metrics.RecordSagaOutcome("error")
		return fmt.Errorf("%w: failed to mark review as published: %w", ErrPersistence, err)
	}

	metrics.RecordSagaOutcome("published")
	log.Info().Msg("Review published")

	s.publishFollowUp(ctx, review, log)
	return nil
}

// ensureUnchanged сверяет отзыв с хранилищем перед write-through.
// Флаг модерации или правка во время ожидания подтверждений останавливают попытку.
func (s *ReviewService) ensureUnchanged(ctx context.Context, review *entity.Review) error {
	current, err := s.reviewRepo.GetByID(ctx, review.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to reload review: %w", ErrPersistence, err)
	}
	if current.Version != review.Version || current.Status != entity.StatusProcessing {
		return fmt.Errorf("%w: review is %s at version %d", repository.ErrConcurrencyConflict, current.Status, current.Version)
	}
	return nil
}

// writeThrough пересчитывает оба рейтинга с учетом публикуемого отзыва и пишет их участникам
func (s *ReviewService) writeThrough(ctx context.Context, review *entity.Review) error {
	candidate := review.Projection()

	var artisanAvg, serviceAvg float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		avg, err := s.artisanRatings.AverageIncluding(gctx, review.ArtisanID, candidate)
		if err != nil {
			return fmt.Errorf("failed to recompute artisan rating: %w", err)
		}
		artisanAvg = avg
		return nil
	})
	g.Go(func() error {
		avg, err := s.serviceRatings.AverageIncluding(gctx, review.ServiceID, candidate)
		if err != nil {
			return fmt.Errorf("failed to recompute service rating: %w", err)
		}
		serviceAvg = avg
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.identity.UpdateArtisanRating(gctx, review.ArtisanID, artisanAvg)
	})
	g.Go(func() error {
		return s.catalog.UpdateServiceRating(gctx, review.ServiceID, serviceAvg)
	})
	return g.Wait()
}

func (s *ReviewService) publishFollowUp(ctx context.Context, review *entity.Review, log zerolog.Logger) {
	event, err := events.NewDomainEvent(events.ReviewPublished, 1, review.Payload())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build follow-up event")
		return
	}

	if err := s.channel.Publish(ctx, s.cfg.PublishedTopic, event); err != nil {
		// участники сверят рейтинг при следующей публикации по этому субъекту
		log.Error().Err(err).Str("follow_up_event_id", event.ID).Msg("Failed to publish follow-up event")
	}
}

// fail записывает неудачу попытки и возвращает отзыв в pending.
// Запись идет под своим таймаутом и не зависит от отмены контекста саги.
func (s *ReviewService) fail(ctx context.Context, review *entity.Review, cause error, reason, participant string) error {
	metrics.RecordSagaOutcome(outcomeOf(cause))

	if err := review.MarkAsFailed(reason, participant, time.Now()); err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	if err := s.reviewRepo.Update(writeCtx, review); err != nil {
		return fmt.Errorf("%w: failed to record saga failure (%v): %w", ErrPersistence, cause, err)
	}

	return cause
}

func resultError(result saga.Result) error {
	if result.Resolution == saga.ResolutionTimeout {
		return fmt.Errorf("%w: %s", ErrSagaTimeout, result.Error)
	}
	if result.Resolution == saga.ResolutionCancelled {
		return errors.New(result.Error)
	}
	return fmt.Errorf("%w: %s: %s", ErrParticipantFailure, result.FailingParticipant, result.Error)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrSagaTimeout):
		return "timeout"
	case errors.Is(err, ErrParticipantFailure):
		return "participant_failure"
	case errors.Is(err, repository.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (s *ReviewService) GetReview(ctx context.Context, reviewID string) (*entity.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return review, nil
}

func (s *ReviewService) getOwned(ctx context.Context, reviewID, clientID string) (*entity.Review, error) {
	review, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	// Проверяем что пользователь является автором отзыва
	if review.ClientID != clientID {
		return nil, ErrUnauthorized
	}
	return review, nil
}

// UpdateReview меняет текст или оценки; отзыв возвращается в pending и снова проходит сагу
func (s *ReviewService) UpdateReview(ctx context.Context, reviewID string, clientID string, req *entity.UpdateReviewRequest) (*entity.Review, error) {
	if req.Empty() {
		return nil, ErrNothingToUpdate
	}

	review, err := s.getOwned(ctx, reviewID, clientID)
	if err != nil {
		return nil, err
	}

	if req.Comment != nil || req.Attachments != nil {
		if err := review.UpdateFeedback(req.Comment, req.Attachments); err != nil {
			return nil, err
		}
	}
	if req.ArtisanRating != nil || req.ServiceRating != nil {
		var artisanRating, serviceRating *entity.Rating
		if req.ArtisanRating != nil {
			r := req.ArtisanRating.ToRating()
			artisanRating = &r
		}
		if req.ServiceRating != nil {
			r := req.ServiceRating.ToRating()
			serviceRating = &r
		}
		if err := review.UpdateRatings(artisanRating, serviceRating); err != nil {
			return nil, err
		}
	}

	// слот занимается до записи: сохраненная правка всегда получает свою сагу
	if err := s.reserve(review.ID); err != nil {
		return nil, err
	}
	if err := s.reviewRepo.Update(ctx, review); err != nil {
		s.inFlight.Remove(review.ID)
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	s.start(review)
	return review, nil
}

// ResubmitReview повторяет сагу для отзыва в pending после неудачной попытки
func (s *ReviewService) ResubmitReview(ctx context.Context, reviewID string, clientID string) (*entity.Review, error) {
	review, err := s.getOwned(ctx, reviewID, clientID)
	if err != nil {
		return nil, err
	}

	if review.Status != entity.StatusPending {
		return nil, &entity.IllegalStateTransitionError{From: review.Status, Action: "resubmit"}
	}

	if err := s.launch(review); err != nil {
		return nil, err
	}
	return review, nil
}

// FlagReview - модерация; отзыв во флаге не участвует в рейтинге и больше не меняется
func (s *ReviewService) FlagReview(ctx context.Context, reviewID string, note string) (*entity.Review, error) {
	review, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if err := review.Flag(note); err != nil {
		return nil, err
	}

	if err := s.reviewRepo.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to flag review: %w", err)
	}

	logger.Info().Str("review_id", review.ID).Msg("Review flagged by moderation")
	return review, nil
}

// ListPublished - запрос опубликованных отзывов для калькуляторов рейтинга участников
func (s *ReviewService) ListPublished(ctx context.Context, kind rating.SubjectKind, subjectID string) ([]rating.PublishedReview, error) {
	reviews, err := repositorySource{repo: s.reviewRepo}.FindPublishedBySubject(ctx, kind, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list published reviews: %w", err)
	}
	return reviews, nil
}

// RecoverStaleSagas возвращает в pending отзывы, застрявшие в processing после падения процесса.
// Саги этого процесса не трогаются. Повторный запуск остается за клиентом.
func (s *ReviewService) RecoverStaleSagas(ctx context.Context, staleAfter time.Duration) (int, error) {
	stale, err := s.reviewRepo.FindStaleProcessing(ctx, time.Now().UTC().Add(-staleAfter), 100)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale sagas: %w", err)
	}

	recovered := 0
	for i := range stale {
		review := &stale[i]
		if s.inFlight.Contains(review.ID) {
			continue
		}

		if err := review.MarkAsFailed("saga interrupted before completion", "", time.Now()); err != nil {
			continue
		}
		if err := s.reviewRepo.Update(ctx, review); err != nil {
			if errors.Is(err, repository.ErrConcurrencyConflict) {
				continue
			}
			return recovered, fmt.Errorf("failed to recover review %s: %w", review.ID, err)
		}

		metrics.RecordSagaOutcome("interrupted")
		logger.Warn().Str("review_id", review.ID).Msg("Recovered interrupted saga")
		recovered++
	}

	return recovered, nil
}

// Shutdown перестает принимать новые саги и ждет текущие до истечения ctx;
// затем отменяет оставшиеся, их исход записывается как неудача попытки.
func (s *ReviewService) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// Wait блокируется, пока не завершатся все запущенные саги
func (s *ReviewService) Wait() {
	s.wg.Wait()
}
