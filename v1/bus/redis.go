package bus

import (
	"context"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

type redisSubscription struct {
	pubsub *redis.PubSub
	chans  []chan struct{}
	done   chan struct{}
}

// RedisBus implements Bus over Redis pub/sub.
type RedisBus struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*redisSubscription
}

// NewRedisBus returns a new RedisBus using the provided client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, subs: make(map[string]*redisSubscription)}
}

// Publish implements Bus.Publish.
func (b *RedisBus) Publish(ctx context.Context, topic string) error {
	return b.client.Publish(ctx, topic, "1").Err()
}

// Subscribe implements Bus.Subscribe. The first subscriber for a topic
// opens the underlying Redis subscription; later ones share it.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	sub := b.subs[topic]
	if sub == nil {
		pubsub := b.client.Subscribe(context.Background(), topic)
		sub = &redisSubscription{pubsub: pubsub, done: make(chan struct{})}
		b.subs[topic] = sub
		go func() {
			msgs := pubsub.Channel()
			for {
				select {
				case _, ok := <-msgs:
					if !ok {
						return
					}
					b.mu.Lock()
					chans := append([]chan struct{}(nil), sub.chans...)
					b.mu.Unlock()
					for _, c := range chans {
						select {
						case c <- struct{}{}:
						default:
						}
					}
				case <-sub.done:
					return
				}
			}
		}()
	}
	sub.chans = append(sub.chans, ch)
	b.mu.Unlock()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe. Closing the last channel of a
// topic tears down the Redis subscription.
func (b *RedisBus) Unsubscribe(ctx context.Context, topic string, ch chan struct{}) error {
	b.mu.Lock()
	sub := b.subs[topic]
	if sub == nil {
		b.mu.Unlock()
		return nil
	}
	for i, c := range sub.chans {
		if c == ch {
			sub.chans[i] = sub.chans[len(sub.chans)-1]
			sub.chans = sub.chans[:len(sub.chans)-1]
			close(c)
			break
		}
	}
	var pubsub *redis.PubSub
	if len(sub.chans) == 0 {
		close(sub.done)
		pubsub = sub.pubsub
		delete(b.subs, topic)
	}
	b.mu.Unlock()
	if pubsub != nil {
		return pubsub.Close()
	}
	return nil
}
