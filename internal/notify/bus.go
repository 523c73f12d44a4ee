// Package notify fans mixer parameter changes out to subscribers.
//
// Publishing never blocks: each subscriber owns a buffered channel and a
// notification that does not fit is dropped and counted.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/leandrodaf/zynmixer/sdk/contracts"
)

// DefaultBuffer is used when a subscriber asks for a buffer smaller than one.
const DefaultBuffer = 64

// Bus is a multi-consumer notification channel. Publish must be called from a
// single goroutine at a time for subscribers to see a total order; the mixer
// engine serializes it under its control lock.
type Bus struct {
	logger contracts.Logger

	mu     sync.Mutex // serializes subscriber list writers
	subs   atomic.Pointer[[]*subscription]
	closed bool
}

// NewBus creates an empty bus.
func NewBus(logger contracts.Logger) *Bus {
	b := &Bus{logger: logger}
	b.subs.Store(&[]*subscription{})
	return b
}

// Subscribe registers a new subscriber. Only notifications published after
// this call are delivered. Subscribing to a closed bus returns a closed
// subscription.
func (b *Bus) Subscribe(buffer int) contracts.Subscription {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	s := &subscription{
		id:  uuid.NewString(),
		ch:  make(chan contracts.Notification, buffer),
		bus: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	cur := *b.subs.Load()
	next := make([]*subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	b.subs.Store(&next)
	b.logger.Debug("notification subscriber added",
		b.logger.Field().String("subscription", s.id),
		b.logger.Field().Int("buffer", buffer))
	return s
}

// Publish delivers n to every current subscriber without blocking.
func (b *Bus) Publish(n contracts.Notification) {
	for _, s := range *b.subs.Load() {
		s.deliver(n, b.logger)
	}
}

// Len returns the number of live subscribers.
func (b *Bus) Len() int {
	return len(*b.subs.Load())
}

// Close closes every subscription. Later Subscribe calls get closed subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := *b.subs.Load()
	b.subs.Store(&[]*subscription{})
	b.mu.Unlock()

	for _, s := range subs {
		s.shutdown()
	}
}

func (b *Bus) remove(target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := *b.subs.Load()
	next := make([]*subscription, 0, len(cur))
	for _, s := range cur {
		if s != target {
			next = append(next, s)
		}
	}
	b.subs.Store(&next)
}

type subscription struct {
	id      string
	ch      chan contracts.Notification
	bus     *Bus
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed against sends on a closed channel
	closed bool
}

func (s *subscription) ID() string { return s.id }

func (s *subscription) C() <-chan contracts.Notification { return s.ch }

func (s *subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *subscription) Close() {
	s.bus.remove(s)
	s.shutdown()
}

func (s *subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *subscription) deliver(n contracts.Notification, logger contracts.Logger) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- n:
	default:
		if s.dropped.Add(1) == 1 {
			logger.Warn("notification buffer full; dropping notifications",
				logger.Field().String("subscription", s.id),
				logger.Field().String("symbol", n.Symbol()))
		}
	}
}
