package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"artisanmarket/pkg/events"
	"artisanmarket/pkg/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var participants = []string{events.ParticipantCatalog, events.ParticipantIdentity}

type harness struct {
	t          *testing.T
	channel    *messaging.MemoryChannel
	aggregator *Aggregator
	wg         sync.WaitGroup
}

func newHarness(t *testing.T) *harness {
	ch := messaging.NewMemoryChannel()
	h := &harness{t: t, channel: ch, aggregator: NewAggregator(ch, events.TopicAcknowledgments)}
	t.Cleanup(func() {
		h.wg.Wait()
		h.channel.Drain()
		require.NoError(t, h.channel.Close())
	})
	return h
}

func (h *harness) ack(correlationID, participant string, status events.AckStatus, reason string) {
	event, err := events.NewAcknowledgmentEvent(events.Acknowledgment{
		OriginalEventID:   correlationID,
		Status:            status,
		SourceParticipant: participant,
		Error:             reason,
	})
	require.NoError(h.t, err)
	require.NoError(h.t, h.channel.Publish(context.Background(), events.TopicAcknowledgments, event))
}

func (h *harness) ackAfter(d time.Duration, correlationID, participant string, status events.AckStatus, reason string) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		time.Sleep(d)
		h.ack(correlationID, participant, status, reason)
	}()
}

func TestAwait_AllProcessed(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(10*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ackAfter(15*time.Millisecond, "event-1", events.ParticipantIdentity, events.AckProcessed, "")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, time.Second)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.FailingParticipant)
	assert.Equal(t, ResolutionAllCollected, result.Resolution)
	assert.Less(t, result.Elapsed, 500*time.Millisecond)
	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
}

func TestAwait_FailFast(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(5*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckFailed, "db down")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, time.Second)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "db down", result.Error)
	assert.Equal(t, events.ParticipantCatalog, result.FailingParticipant)
	assert.Equal(t, ResolutionFailFast, result.Resolution)
	assert.Less(t, result.Elapsed, 500*time.Millisecond)
}

func TestAwait_FailFastAfterPartialSuccess(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(5*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ackAfter(20*time.Millisecond, "event-1", events.ParticipantIdentity, events.AckFailed, "artisan suspended")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, time.Second)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, events.ParticipantIdentity, result.FailingParticipant)
	assert.Equal(t, "artisan suspended", result.Error)
}

func TestAwait_TimeoutNamesMissingParticipant(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(5*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, 100*time.Millisecond)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Timeout waiting for participants: identity", result.Error)
	assert.Equal(t, events.ParticipantIdentity, result.FailingParticipant)
	assert.Equal(t, ResolutionTimeout, result.Resolution)
	assert.GreaterOrEqual(t, result.Elapsed, 100*time.Millisecond)
	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
}

func TestAwait_TimeoutListsAllMissingSorted(t *testing.T) {
	h := newHarness(t)

	result, err := h.aggregator.Await(context.Background(), "event-1", []string{"identity", "catalog"}, 30*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "Timeout waiting for participants: catalog, identity", result.Error)
	assert.Equal(t, "catalog", result.FailingParticipant)
}

func TestAwait_IgnoresOtherCorrelationIDs(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(5*time.Millisecond, "event-other", events.ParticipantCatalog, events.AckFailed, "not ours")
	h.ackAfter(10*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ackAfter(15*time.Millisecond, "event-1", events.ParticipantIdentity, events.AckProcessed, "")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, time.Second)

	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestAwait_IgnoresUnknownParticipants(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(5*time.Millisecond, "event-1", "wallet", events.AckFailed, "not required")
	h.ackAfter(10*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ackAfter(15*time.Millisecond, "event-1", events.ParticipantIdentity, events.AckProcessed, "")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, time.Second)

	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestAwait_IgnoresMalformedAcks(t *testing.T) {
	h := newHarness(t)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		time.Sleep(5 * time.Millisecond)
		_ = h.channel.Publish(context.Background(), events.TopicAcknowledgments, events.DomainEvent{
			ID:      "broken",
			Name:    events.Acknowledgement,
			Payload: []byte(`{"original_event_id":"event-1","status":"failed"}`),
		})
	}()

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, 50*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, ResolutionTimeout, result.Resolution)
}

func TestAwait_DuplicateAckCountsOnce(t *testing.T) {
	h := newHarness(t)
	h.ackAfter(5*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ackAfter(10*time.Millisecond, "event-1", events.ParticipantCatalog, events.AckProcessed, "")

	result, err := h.aggregator.Await(context.Background(), "event-1", participants, 80*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, ResolutionTimeout, result.Resolution)
	assert.Equal(t, events.ParticipantIdentity, result.FailingParticipant)
}

func TestAwait_NoRequiredParticipants(t *testing.T) {
	h := newHarness(t)

	result, err := h.aggregator.Await(context.Background(), "event-1", nil, time.Second)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
}

func TestAwait_ContextCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := h.aggregator.Await(ctx, "event-1", participants, time.Second)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ResolutionCancelled, result.Resolution)
	assert.Less(t, result.Elapsed, 500*time.Millisecond)
	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
}

func TestAwait_ClosedChannel(t *testing.T) {
	ch := messaging.NewMemoryChannel()
	require.NoError(t, ch.Close())

	_, err := NewAggregator(ch, "").Await(context.Background(), "event-1", participants, time.Second)

	assert.ErrorIs(t, err, messaging.ErrChannelClosed)
}

func TestBegin_AckBeforeResultIsNotLost(t *testing.T) {
	h := newHarness(t)

	wait, err := h.aggregator.Begin("event-1", participants, time.Second)
	require.NoError(t, err)

	h.ack("event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ack("event-1", events.ParticipantIdentity, events.AckProcessed, "")
	h.channel.Drain()

	result := wait.Result(context.Background())
	assert.True(t, result.Success)
}

func TestWait_CancelTearsDown(t *testing.T) {
	h := newHarness(t)

	wait, err := h.aggregator.Begin("event-1", participants, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, h.channel.Subscribers(events.TopicAcknowledgments))

	wait.Cancel()
	wait.Cancel()

	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
	result := wait.Result(context.Background())
	assert.Equal(t, ResolutionCancelled, result.Resolution)
}

func TestWait_ResolutionIsFinal(t *testing.T) {
	h := newHarness(t)

	wait, err := h.aggregator.Begin("event-1", participants, 50*time.Millisecond)
	require.NoError(t, err)

	h.ack("event-1", events.ParticipantCatalog, events.AckFailed, "db down")
	first := wait.Result(context.Background())
	require.Equal(t, ResolutionFailFast, first.Resolution)

	// опоздавшие подтверждения и таймер не меняют результат
	h.ack("event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ack("event-1", events.ParticipantIdentity, events.AckProcessed, "")
	time.Sleep(80 * time.Millisecond)
	h.channel.Drain()

	second := wait.Result(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
	wait.Cancel()
	assert.Equal(t, first, wait.Result(context.Background()))
}

func TestStart_HoldsAckSubscriptionAcrossWaits(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.aggregator.Start())
	require.NoError(t, h.aggregator.Start())
	assert.Equal(t, 1, h.channel.Subscribers(events.TopicAcknowledgments))

	wait, err := h.aggregator.Begin("event-1", participants, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, h.channel.Subscribers(events.TopicAcknowledgments))

	h.ack("event-1", events.ParticipantCatalog, events.AckProcessed, "")
	h.ack("event-1", events.ParticipantIdentity, events.AckProcessed, "")
	result := wait.Result(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, 1, h.channel.Subscribers(events.TopicAcknowledgments))

	h.aggregator.Stop()
	h.aggregator.Stop()
	assert.Equal(t, 0, h.channel.Subscribers(events.TopicAcknowledgments))
}
