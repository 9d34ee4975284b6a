package processor

import (
	"context"
	"time"

	"artisanmarket/pkg/logger"
	"artisanmarket/reviews-service/internal/app/reviews/service"

	"github.com/robfig/cron/v3"
)

// StaleSagaSweeper по расписанию возвращает в pending отзывы, чья сага потерялась вместе с процессом
type StaleSagaSweeper struct {
	cron       *cron.Cron
	recoverer  service.SagaRecoverer
	staleAfter time.Duration
}

func NewStaleSagaSweeper(recoverer service.SagaRecoverer, staleAfter time.Duration) *StaleSagaSweeper {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &StaleSagaSweeper{
		cron:       c,
		recoverer:  recoverer,
		staleAfter: staleAfter,
	}
}

func (s *StaleSagaSweeper) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().
		Str("schedule", schedule).
		Dur("stale_after", s.staleAfter).
		Msg("Stale saga sweeper started")

	// первый проход сразу при старте
	s.RunOnce(ctx)
	return nil
}

// RunOnce выполняет один проход и возвращает число восстановленных отзывов
func (s *StaleSagaSweeper) RunOnce(ctx context.Context) int {
	recovered, err := s.recoverer.RecoverStaleSagas(ctx, s.staleAfter)
	if err != nil {
		logger.Error().Err(err).Int("recovered", recovered).Msg("Stale saga sweep failed")
		return recovered
	}

	if recovered > 0 {
		logger.Warn().Int("recovered", recovered).Msg("Stale sagas returned to pending")
	}
	return recovered
}

func (s *StaleSagaSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Stale saga sweeper stopped")
}

func (s *StaleSagaSweeper) Entries() []cron.Entry {
	return s.cron.Entries()
}
