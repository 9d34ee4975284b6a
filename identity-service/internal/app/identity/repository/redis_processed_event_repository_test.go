package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ProcessedEventRepositoryTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	repo      ProcessedEventRepository
}

func TestProcessedEventRepositorySuite(t *testing.T) {
	suite.Run(t, new(ProcessedEventRepositoryTestSuite))
}

func (s *ProcessedEventRepositoryTestSuite) SetupSuite() {
	var err error
	s.miniRedis, err = miniredis.Run()
	require.NoError(s.T(), err)

	s.client = redis.NewClient(&redis.Options{
		Addr: s.miniRedis.Addr(),
	})

	s.repo = NewRedisProcessedEventRepository(s.client, time.Hour)
}

func (s *ProcessedEventRepositoryTestSuite) SetupTest() {
	s.miniRedis.FlushAll()
}

func (s *ProcessedEventRepositoryTestSuite) TearDownSuite() {
	s.client.Close()
	s.miniRedis.Close()
}

func (s *ProcessedEventRepositoryTestSuite) TestProcessed_NewEvent() {
	processed, err := s.repo.Processed(context.Background(), "event-1")

	s.NoError(err)
	s.False(processed)
	s.False(s.miniRedis.Exists("processed_event:event-1"))
}

func (s *ProcessedEventRepositoryTestSuite) TestProcessed_AfterMark() {
	ctx := context.Background()

	s.Require().NoError(s.repo.MarkProcessed(ctx, "event-1"))

	processed, err := s.repo.Processed(ctx, "event-1")
	s.NoError(err)
	s.True(processed)
}

func (s *ProcessedEventRepositoryTestSuite) TestProcessed_CheckDoesNotMark() {
	ctx := context.Background()

	_, err := s.repo.Processed(ctx, "event-1")
	s.Require().NoError(err)

	processed, err := s.repo.Processed(ctx, "event-1")
	s.NoError(err)
	s.False(processed)
}

func (s *ProcessedEventRepositoryTestSuite) TestProcessed_IndependentEvents() {
	ctx := context.Background()

	s.Require().NoError(s.repo.MarkProcessed(ctx, "event-a"))

	b, err := s.repo.Processed(ctx, "event-b")
	s.NoError(err)
	s.False(b)
}

func (s *ProcessedEventRepositoryTestSuite) TestMarkProcessed_ExpiresAfterTTL() {
	ctx := context.Background()

	s.Require().NoError(s.repo.MarkProcessed(ctx, "event-1"))

	s.Equal(time.Hour, s.miniRedis.TTL("processed_event:event-1"))
	s.miniRedis.FastForward(time.Hour + time.Second)

	processed, err := s.repo.Processed(ctx, "event-1")
	s.NoError(err)
	s.False(processed)
}

func (s *ProcessedEventRepositoryTestSuite) TestRedisDown() {
	s.miniRedis.SetError("LOADING")
	defer s.miniRedis.SetError("")

	_, err := s.repo.Processed(context.Background(), "event-1")
	s.Error(err)

	s.Error(s.repo.MarkProcessed(context.Background(), "event-1"))
}
