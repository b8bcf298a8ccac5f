package embedded

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/habio/internal/backend"
	"github.com/julianstephens/habio/internal/logger"
)

// DefaultRedisChannel is the pub/sub channel shared by server processes
const DefaultRedisChannel = "habio:realtime"

// RedisBroker shares events between server processes through a redis pub/sub
// channel. Received messages are relayed into a local MemoryBroker, so events
// published by this process reach local subscribers through redis as well.
type RedisBroker struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	local   *MemoryBroker
	done    chan struct{}
}

// NewRedisBroker connects to addr and starts relaying channel.
func NewRedisBroker(ctx context.Context, addr, channel string) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	if channel == "" {
		channel = DefaultRedisChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed before publishing anything
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	r := &RedisBroker{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		local:   NewMemoryBroker(),
		done:    make(chan struct{}),
	}
	go r.relay()
	return r, nil
}

func (r *RedisBroker) relay() {
	defer close(r.done)
	for msg := range r.pubsub.Channel() {
		var ev backend.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			logger.Warn("Dropping malformed realtime message", "channel", msg.Channel, "error", err)
			continue
		}
		if err := r.local.Publish(context.Background(), ev); err != nil {
			logger.Warn("Failed to relay realtime message", "error", err)
		}
	}
}

func (r *RedisBroker) Publish(ctx context.Context, ev backend.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (r *RedisBroker) Subscribe(fn func(backend.Event)) func() {
	return r.local.Subscribe(fn)
}

func (r *RedisBroker) Close() error {
	err := r.pubsub.Close()
	<-r.done
	r.local.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}
