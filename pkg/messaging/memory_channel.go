package messaging

import (
	"context"
	"sync"

	"artisanmarket/pkg/events"
)

type memoryHandler struct {
	sub     *subscription
	handler Handler
}

// MemoryChannel - брокер внутри процесса. Каждая доставка выполняется в своей горутине,
// поэтому порядок доставки не гарантирован, как и у Kafka.
type MemoryChannel struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]memoryHandler
	nextID uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMemoryChannel() *MemoryChannel {
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryChannel{
		topics: make(map[string]map[uint64]memoryHandler),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *MemoryChannel) Publish(_ context.Context, topic string, event events.DomainEvent) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrChannelClosed
	}

	for _, h := range c.topics[topic] {
		c.wg.Add(1)
		go func(h memoryHandler) {
			defer c.wg.Done()
			if h.sub.active() {
				h.handler(c.ctx, event)
			}
		}(h)
	}

	return nil
}

func (c *MemoryChannel) Subscribe(topic string, handler Handler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrChannelClosed
	}

	c.nextID++
	id := c.nextID

	sub := newSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.topics[topic], id)
	})

	if c.topics[topic] == nil {
		c.topics[topic] = make(map[uint64]memoryHandler)
	}
	c.topics[topic][id] = memoryHandler{sub: sub, handler: handler}

	return sub, nil
}

// Subscribers возвращает число активных подписок на топик
func (c *MemoryChannel) Subscribers(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.topics[topic])
}

// Drain дожидается завершения уже начатых доставок
func (c *MemoryChannel) Drain() {
	c.wg.Wait()
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.topics = make(map[string]map[uint64]memoryHandler)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
