package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore keeps one string key per document and announces every write on a
// pub/sub channel so watchers can refresh.
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	channel string
}

func NewRedisStore(rdb *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: keyPrefix, channel: keyPrefix + "changes"}
}

func (s *RedisStore) key(path string) string { return s.prefix + path }

func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, path string, data []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.key(path), data, 0)
		p.Publish(ctx, s.channel, path)
		return nil
	})
	return err
}

func (s *RedisStore) Create(ctx context.Context, path string, data []byte) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(path), data, 0).Result()
	if err != nil || !ok {
		return false, err
	}
	s.notify(ctx, path)
	return true, nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error) {
	key := s.key(path)
	var out []byte
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if next == nil {
			out = cur
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, next, 0)
			p.Publish(ctx, s.channel, path)
			return nil
		})
		out = next
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // someone else wrote in between; read again
		}
		return out, err
	}
	return nil, fmt.Errorf("docstore: update %s: too much contention", path)
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	if err := s.rdb.Del(ctx, s.key(path)).Err(); err != nil {
		return err
	}
	s.notify(ctx, path)
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(keys))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		out = append(out, Entry{Path: strings.TrimPrefix(keys[i], s.prefix), Data: []byte(str)})
	}
	return out, nil
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.scan(ctx, prefix)
	if err != nil || len(keys) == 0 {
		return err
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	s.notify(ctx, prefix)
	return nil
}

func (s *RedisStore) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, globEscape(s.key(prefix))+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// notify is best effort; a missed message only delays a watcher's refresh.
func (s *RedisStore) notify(ctx context.Context, path string) {
	_ = s.rdb.Publish(ctx, s.channel, path).Err()
}

// Watch subscribes to the change channel and signals for paths under prefix.
// Signals are coalesced: a slow reader sees one pending value, not one per write.
func (s *RedisStore) Watch(ctx context.Context, prefix string) (<-chan struct{}, func(), error) {
	sub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		for m := range msgs {
			if !strings.HasPrefix(m.Payload, prefix) && !strings.HasPrefix(prefix, m.Payload) {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() { once.Do(func() { _ = sub.Close() }) }
	return out, stop, nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Watcher = (*RedisStore)(nil)
)
