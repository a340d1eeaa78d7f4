package pubsub

import (
	"sync"
)

const defaultCapacity = 64

// Subscriber receives events published to the topics it is subscribed to.
// Delivery is best effort: Signal drops instead of blocking.
type Subscriber struct {
	mu      sync.Mutex
	payload chan any
	closed  bool
}

func NewSubscriber(channelCapacity int) *Subscriber {
	if channelCapacity <= 0 {
		channelCapacity = defaultCapacity
	}

	return &Subscriber{
		payload: make(chan any, channelCapacity),
	}
}

// Signal hands data to the subscriber without blocking. It reports false
// when the subscriber is closed or its channel is full.
func (s *Subscriber) Signal(data any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.payload <- data:
		return true
	default:
		return false
	}
}

// Channel exposes the receive side. It is closed when the subscriber is
// unsubscribed.
func (s *Subscriber) Channel() <-chan any {
	return s.payload
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.payload)
	}
}
