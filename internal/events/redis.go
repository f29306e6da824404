package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "matchcore:match-formed"

// RedisBus carries MatchFormed between service instances over Redis pub/sub.
// Every instance publishes to the bus and forwards what it receives into its
// own Broker.
type RedisBus struct {
	log     *zap.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and checks the connection.
func NewRedisBus(ctx context.Context, addr, channel string, log *zap.Logger) (*RedisBus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     log.Named("redis_bus").With(zap.String("channel", channel)),
		rdb:     rdb,
		channel: channel,
	}, nil
}

// PublishMatchFormed implements matching.Publisher.
func (b *RedisBus) PublishMatchFormed(ctx context.Context, evt matching.MatchFormed) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the channel and passes every event to onEvent
// until ctx is done. It returns once the subscription is confirmed.
func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(context.Context, matching.MatchFormed)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var evt matching.MatchFormed
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					b.log.Warn("bad match event payload", zap.Error(err))
					continue
				}
				onEvent(ctx, evt)
			}
		}
	}()
	return nil
}

// Ping checks the Redis connection.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
