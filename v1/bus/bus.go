// Package bus provides the pub/sub channel used to propagate evaluation
// domain events across nodes. Topics are plain strings; subscribers receive
// a signal per published event.
package bus

import (
	"context"
	"strconv"
	"sync"
)

// Domain events raised by the invocation dispatcher.
const (
	EventViewableInstructors = "viewable-instructors"
	EventViewableStudents    = "viewable-students"
)

// Topic formats the bus topic for a domain event of one evaluation. The
// separator is kept broker-safe (Kafka forbids colons in topic names).
func Topic(event string, evalID int64) string {
	return "eval." + event + "." + strconv.FormatInt(evalID, 10)
}

// Bus is a minimal pub/sub abstraction with in-memory, Redis, NATS and
// Kafka backends.
type Bus interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (chan struct{}, error)
	Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error
}

// InMemoryBus is a local Bus for single-node use and tests.
type InMemoryBus struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[string][]chan struct{})}
}

// Publish implements Bus.Publish. Slow subscribers drop signals rather than
// block the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, topic string) error {
	b.mu.Lock()
	chans := append([]chan struct{}(nil), b.subs[topic]...)
	b.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe implements Bus.Subscribe. The subscription is removed when ctx
// is cancelled.
func (b *InMemoryBus) Subscribe(ctx context.Context, topic string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(context.Background(), topic, ch)
	}()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *InMemoryBus) Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, c := range subs {
		if c == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			close(c)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, topic)
	} else {
		b.subs[topic] = subs
	}
	return nil
}
