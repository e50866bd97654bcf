package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bitcoinuniversity/invest/internal/domain"
)

const redisKeyPrefix = "cart:"

// RedisPersister implements Persister with one Redis string per identity.
// A zero ttl keeps records forever.
type RedisPersister struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisPersister creates a new Redis cart persister.
func NewRedisPersister(rdb redis.Cmdable, ttl time.Duration) *RedisPersister {
	return &RedisPersister{rdb: rdb, ttl: ttl}
}

func redisKey(id domain.Identity) string {
	return redisKeyPrefix + string(id)
}

func (p *RedisPersister) Load(ctx context.Context, id domain.Identity) ([]byte, error) {
	data, err := p.rdb.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", redisKey(id), err)
	}
	return data, nil
}

func (p *RedisPersister) Save(ctx context.Context, id domain.Identity, data []byte) error {
	if err := p.rdb.Set(ctx, redisKey(id), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", redisKey(id), err)
	}
	return nil
}
