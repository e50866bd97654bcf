// Package invalidate fans out "this wallet's investments changed" events to the
// caches that hold investment views.
package invalidate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

// Channel is the Redis pub/sub channel carrying invalidated wallet addresses.
const Channel = "invest:invalidate"

// Invalidator drops cached views for a wallet.
type Invalidator interface {
	Invalidate(wallet domain.Identity)
}

// Bus announces that a wallet's investments changed.
type Bus interface {
	Publish(ctx context.Context, wallet domain.Identity) error
}

// Local invalidates in-process caches directly.
type Local struct {
	targets []Invalidator
}

// NewLocal creates a bus that calls every target synchronously.
func NewLocal(targets ...Invalidator) *Local {
	return &Local{targets: targets}
}

func (l *Local) Publish(_ context.Context, wallet domain.Identity) error {
	for _, t := range l.targets {
		t.Invalidate(wallet)
	}
	return nil
}

// RedisBus publishes invalidations so that every instance sharing the Redis
// server drops its cached views.
type RedisBus struct {
	rdb     *redis.Client
	targets []Invalidator
}

// NewRedisBus creates a Redis-backed bus delivering to the local targets.
func NewRedisBus(rdb *redis.Client, targets ...Invalidator) *RedisBus {
	return &RedisBus{rdb: rdb, targets: targets}
}

// Publish invalidates locally first, then tells the other instances.
func (b *RedisBus) Publish(ctx context.Context, wallet domain.Identity) error {
	for _, t := range b.targets {
		t.Invalidate(wallet)
	}
	if err := b.rdb.Publish(ctx, Channel, wallet.String()).Err(); err != nil {
		return fmt.Errorf("publishing invalidation for %s: %w", wallet, err)
	}
	return nil
}

// Listen applies invalidations published by any instance until ctx is done.
func (b *RedisBus) Listen(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", Channel, err)
	}
	slog.Info("listening for cache invalidations", "channel", Channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			wallet := domain.Identity(msg.Payload)
			for _, t := range b.targets {
				t.Invalidate(wallet)
			}
		}
	}
}
