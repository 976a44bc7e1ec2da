// Package broadcast propagates catalog cache invalidations between server
// instances over Redis pub/sub.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog/internal/core"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "catalog:invalidate"

const publishTimeout = 2 * time.Second

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Invalidator drops the local cache and tells other instances to do the same.
// It satisfies core.Invalidator, so the mutator can use it in place of the
// cache itself.
type Invalidator struct {
	local      core.Invalidator
	client     *redis.Client
	channel    string
	instanceID string
	logger     *slog.Logger
}

// New wraps local. An empty channel selects DefaultChannel.
func New(client *redis.Client, channel string, local core.Invalidator) *Invalidator {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Invalidator{
		local:      local,
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		logger:     slog.Default().With("component", "broadcast"),
	}
}

// InstanceID identifies this process on the channel.
func (b *Invalidator) InstanceID() string { return b.instanceID }

// Invalidate clears the local cache first. A failed publish is logged; peers
// then fall back to their TTL.
func (b *Invalidator) Invalidate() {
	b.local.Invalidate()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, b.channel, b.instanceID).Err(); err != nil {
		b.logger.Warn("cache invalidation not broadcast",
			"channel", b.channel,
			"error", err,
		)
	}
}

// Listen subscribes to the channel and invalidates the local cache for every
// message sent by another instance. It returns when ctx ends.
func (b *Invalidator) Listen(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("listening for cache invalidations", "channel", b.channel, "instance", b.instanceID)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription to %s closed", b.channel)
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *Invalidator) handle(sender string) {
	if sender == b.instanceID {
		return
	}
	b.local.Invalidate()
	b.logger.Debug("remote cache invalidation applied", "from", sender)
}
