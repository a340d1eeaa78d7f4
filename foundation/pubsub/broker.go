// Package pubsub provides the in-process event broker that connects the
// analysis pipeline to streaming clients. Topics are session identifiers.
package pubsub

import (
	"sync"
)

// Broker routes published events to the subscribers of a topic. Publishing
// never blocks: events for a topic with no subscribers are dropped, and so
// are events for a subscriber whose channel is full.
type Broker struct {
	topics map[string][]*Subscriber
	sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string][]*Subscriber),
	}
}

// Publish delivers data to every subscriber of topic and reports how many
// subscribers accepted it.
func (b *Broker) Publish(topic string, data any) int {
	b.RLock()
	subs := b.topics[topic]
	b.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.Signal(data) {
			delivered++
		}
	}

	return delivered
}

func (b *Broker) Subscribe(topic string, s *Subscriber) {
	b.Lock()
	defer b.Unlock()

	b.topics[topic] = append(b.topics[topic], s)
}

// Unsubscribe removes s from topic and closes its channel. Unsubscribing a
// subscriber that was never registered is a no-op.
func (b *Broker) Unsubscribe(topic string, s *Subscriber) {
	b.Lock()
	defer b.Unlock()

	subs, exists := b.topics[topic]
	if !exists {
		return
	}

	b.topics[topic] = removeFromSlice(subs, s)
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}

	s.close()
}

// Subscribers reports how many subscribers topic currently has.
func (b *Broker) Subscribers(topic string) int {
	b.RLock()
	defer b.RUnlock()

	return len(b.topics[topic])
}

// =================================================================================================================

func removeFromSlice[T comparable](s []T, d T) []T {
	for i := range s {
		if s[i] == d {
			s[i] = s[len(s)-1]
			return s[:len(s)-1]
		}
	}
	return s
}
