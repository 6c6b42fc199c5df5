package cache

import (
	"context"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const statusPrefix = "order:status:"

// RedisCache keeps the last known payment status per order for cheap polling.
// Each entry is a hash {user, status}.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// SetStatus overwrites the status; an empty UserID leaves the cached owner alone.
func (r *RedisCache) SetStatus(ctx context.Context, orderID string, st usecase.CachedStatus) error {
	key := statusPrefix + orderID
	fields := []any{"status", string(st.Status)}
	if st.UserID != "" {
		fields = append(fields, "user", st.UserID)
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields...)
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID string) (usecase.CachedStatus, bool, error) {
	m, err := r.rdb.HGetAll(ctx, statusPrefix+orderID).Result()
	if err != nil {
		return usecase.CachedStatus{}, false, err
	}
	if m["status"] == "" {
		return usecase.CachedStatus{}, false, nil
	}
	return usecase.CachedStatus{UserID: m["user"], Status: domain.Status(m["status"])}, true, nil
}

var _ usecase.OrderCache = (*RedisCache)(nil)
