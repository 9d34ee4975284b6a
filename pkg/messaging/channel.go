package messaging

import (
	"context"
	"errors"
	"sync"

	"artisanmarket/pkg/events"
)

var ErrChannelClosed = errors.New("message channel is closed")

// Handler вызывается для каждого доставленного события.
// Брокер не гарантирует ни порядок, ни повторную доставку.
type Handler func(ctx context.Context, event events.DomainEvent)

// Subscription отменяет подписку. Повторный вызов Unsubscribe ничего не делает.
type Subscription interface {
	Unsubscribe()
}

// Channel - best-effort pub/sub транспорт между сервисами
type Channel interface {
	Publish(ctx context.Context, topic string, event events.DomainEvent) error
	Subscribe(topic string, handler Handler) (Subscription, error)
	Close() error
}

// subscription общая для обеих реализаций: remove вызывается ровно один раз
type subscription struct {
	once   sync.Once
	remove func()
	done   chan struct{}
}

func newSubscription(remove func()) *subscription {
	return &subscription{remove: remove, done: make(chan struct{})}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.remove()
	})
}

func (s *subscription) active() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
