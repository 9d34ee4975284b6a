package saga

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"artisanmarket/pkg/events"
	"artisanmarket/pkg/messaging"
	"artisanmarket/pkg/metrics"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"
)

// Способ, которым завершилось ожидание подтверждений
const (
	ResolutionAllCollected = "all_collected"
	ResolutionFailFast     = "fail_fast"
	ResolutionTimeout      = "timeout"
	ResolutionCancelled    = "cancelled"
)

type Result struct {
	Success            bool
	Error              string
	FailingParticipant string
	Resolution         string
	Elapsed            time.Duration
}

// Aggregator собирает подтверждения участников для одного события корреляции
type Aggregator struct {
	channel messaging.Channel
	topic   string

	mu   sync.Mutex
	warm messaging.Subscription
}

func NewAggregator(channel messaging.Channel, ackTopic string) *Aggregator {
	if ackTopic == "" {
		ackTopic = events.TopicAcknowledgments
	}
	return &Aggregator{channel: channel, topic: ackTopic}
}

// Start открывает постоянную подписку на топик подтверждений при старте координатора.
// Reader брокера создается и занимает позицию до первой саги, а не на первом Begin.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.warm != nil {
		return nil
	}

	sub, err := a.channel.Subscribe(a.topic, func(context.Context, events.DomainEvent) {})
	if err != nil {
		return fmt.Errorf("failed to subscribe to acknowledgments: %w", err)
	}
	a.warm = sub
	return nil
}

func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.warm != nil {
		a.warm.Unsubscribe()
		a.warm = nil
	}
}

// Wait - одно ожидание подтверждений. Ровно один из путей (fail-fast, все собраны,
// таймаут, отмена) фиксирует результат; остальные становятся no-op.
type Wait struct {
	correlationID string
	required      mapset.Set[string]
	started       time.Time

	acks  chan events.Acknowledgment
	done  chan struct{}
	timer *time.Timer
	sub   messaging.Subscription

	settled  *atomic.Bool
	teardown sync.Once
	result   Result
}

// Begin подписывается на топик подтверждений и запускает таймер.
// Вызывается до публикации события, иначе быстрый ack можно пропустить.
// Каждый Begin должен завершаться Result или Cancel.
func (a *Aggregator) Begin(correlationID string, required []string, timeout time.Duration) (*Wait, error) {
	w := &Wait{
		correlationID: correlationID,
		required:      mapset.NewSet[string](required...),
		started:       time.Now(),
		acks:          make(chan events.Acknowledgment, len(required)),
		done:          make(chan struct{}),
		settled:       atomic.NewBool(false),
	}

	sub, err := a.channel.Subscribe(a.topic, w.deliver)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to acknowledgments: %w", err)
	}
	w.sub = sub
	w.timer = time.NewTimer(timeout)

	return w, nil
}

// Await - Begin и Result одним вызовом, для случаев, когда публикация уже сделана снаружи
func (a *Aggregator) Await(ctx context.Context, correlationID string, required []string, timeout time.Duration) (Result, error) {
	w, err := a.Begin(correlationID, required, timeout)
	if err != nil {
		return Result{}, err
	}
	return w.Result(ctx), nil
}

func (w *Wait) CorrelationID() string {
	return w.correlationID
}

// deliver вызывается брокером; чужие и нерелевантные подтверждения отбрасываются здесь
func (w *Wait) deliver(_ context.Context, event events.DomainEvent) {
	ack, err := events.DecodeAcknowledgment(event)
	if err != nil {
		return
	}
	if ack.OriginalEventID != w.correlationID || !w.required.Contains(ack.SourceParticipant) {
		return
	}

	select {
	case w.acks <- ack:
	case <-w.done:
	}
}

// Result блокируется до первого из путей завершения. Читать подтверждения должен один вызывающий;
// повторный вызов после завершения возвращает тот же результат.
func (w *Wait) Result(ctx context.Context) Result {
	if w.settled.Load() {
		<-w.done
		return w.result
	}

	if w.required.Cardinality() == 0 {
		return w.settle(Result{Success: true, Resolution: ResolutionAllCollected})
	}

	outcomes := make(map[string]events.Acknowledgment, w.required.Cardinality())
	received := mapset.NewSet[string]()

	for {
		select {
		case ack := <-w.acks:
			// последняя запись для участника побеждает
			outcomes[ack.SourceParticipant] = ack
			received.Add(ack.SourceParticipant)

			if ack.Status == events.AckFailed {
				return w.settle(Result{
					Success:            false,
					Error:              ack.Error,
					FailingParticipant: ack.SourceParticipant,
					Resolution:         ResolutionFailFast,
				})
			}

			if w.required.IsSubset(received) {
				return w.settle(collected(sorted(w.required), outcomes))
			}

		case <-w.timer.C:
			missing := sorted(w.required.Difference(received))
			return w.settle(Result{
				Success:            false,
				Error:              "Timeout waiting for participants: " + strings.Join(missing, ", "),
				FailingParticipant: missing[0],
				Resolution:         ResolutionTimeout,
			})

		case <-ctx.Done():
			return w.settle(Result{
				Success:    false,
				Error:      "acknowledgment wait cancelled: " + ctx.Err().Error(),
				Resolution: ResolutionCancelled,
			})

		case <-w.done:
			return w.result
		}
	}
}

// Cancel завершает ожидание без результата участников, например если публикация не удалась
func (w *Wait) Cancel() {
	w.settle(Result{
		Success:    false,
		Error:      "acknowledgment wait cancelled",
		Resolution: ResolutionCancelled,
	})
}

func (w *Wait) settle(r Result) Result {
	if w.settled.CompareAndSwap(false, true) {
		r.Elapsed = time.Since(w.started)
		w.result = r
		w.teardown.Do(func() {
			w.sub.Unsubscribe()
			w.timer.Stop()
			close(w.done)
		})
		metrics.RecordAckWait(r.Resolution, r.Elapsed)
	}

	<-w.done
	return w.result
}

// collected сводит исходы: успех только если все processed, ошибка - у первого упавшего по имени
func collected(participants []string, outcomes map[string]events.Acknowledgment) Result {
	result := Result{Success: true, Resolution: ResolutionAllCollected}
	for _, p := range participants {
		ack := outcomes[p]
		if ack.Status != events.AckProcessed {
			result.Success = false
			if result.FailingParticipant == "" {
				result.FailingParticipant = p
				result.Error = ack.Error
			}
		}
	}
	return result
}

func sorted(s mapset.Set[string]) []string {
	items := s.ToSlice()
	sort.Strings(items)
	return items
}
