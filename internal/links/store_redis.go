package links

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

const redisScanCount = 500

// RedisStore keeps link records in one hash: token -> expiry in unix milliseconds.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore returns a store using the hash "<prefix>:file_web_serve".
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	key := "file_web_serve"
	if prefix != "" {
		key = prefix + ":" + key
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Upsert(ctx context.Context, token string, expireAt time.Time) error {
	const op = "links.redis.Upsert"

	if err := s.client.HSet(ctx, s.key, token, expireAt.UnixMilli()).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (time.Time, error) {
	const op = "links.redis.Get"

	v, err := s.client.HGet(ctx, s.key, token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, errx.E(op, errx.NotFound, err)
		}
		return time.Time{}, errx.E(op, errx.Unavailable, err)
	}

	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, errx.E(op, errx.Internal, err)
	}
	return time.UnixMilli(ms), nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	const op = "links.redis.Delete"

	if err := s.client.HDel(ctx, s.key, token).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// ScanAll walks the hash with HSCAN. A field may be reported more than once
// while the hash is being rehashed; callers arm timers idempotently.
func (s *RedisStore) ScanAll(ctx context.Context, fn func(token string, expireAt time.Time) error) error {
	const op = "links.redis.ScanAll"

	var cursor uint64
	for {
		kvs, next, err := s.client.HScan(ctx, s.key, cursor, "", redisScanCount).Result()
		if err != nil {
			return errx.E(op, errx.Unavailable, err)
		}

		for i := 0; i+1 < len(kvs); i += 2 {
			ms, err := strconv.ParseInt(kvs[i+1], 10, 64)
			if err != nil {
				return errx.E(op, errx.Internal, err)
			}
			if err := fn(kvs[i], time.UnixMilli(ms)); err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}
