// Package events fans MatchFormed out to the parts of the service that react
// to it, in-process and across instances.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

const subscriberBuffer = 16

// Broker delivers events to in-process subscribers. A subscriber that can't
// keep up loses events instead of stalling the publisher.
type Broker struct {
	log *zap.Logger

	mu          sync.RWMutex
	subscribers map[chan matching.MatchFormed]struct{}
}

// NewBroker returns an empty broker.
func NewBroker(log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		log:         log.Named("events"),
		subscribers: make(map[chan matching.MatchFormed]struct{}),
	}
}

// Subscribe registers a new subscriber. Call the returned func to unsubscribe;
// it closes the channel.
func (b *Broker) Subscribe() (<-chan matching.MatchFormed, func()) {
	ch := make(chan matching.MatchFormed, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// PublishMatchFormed implements matching.Publisher.
func (b *Broker) PublishMatchFormed(_ context.Context, evt matching.MatchFormed) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.log.Warn("subscriber full, dropping event", zap.String("match_id", evt.MatchID))
		}
	}
	return nil
}

// Subscribers returns the current number of subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Consume subscribes and calls fn for every event until ctx is done.
func (b *Broker) Consume(ctx context.Context, fn func(context.Context, matching.MatchFormed)) {
	ch, cancel := b.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fn(ctx, evt)
		}
	}
}
