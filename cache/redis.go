package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v7"
	extErrors "github.com/pkg/errors"
)

var _ Store = &RedisStore{}

var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is a Store backed by Redis. Deadlines come from the client's read and write timeouts
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, extErrors.New("nil redis client is invalid")
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	val, err := r.client.Get(r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, extErrors.Wrap(err, "Cannot get key from redis")
	}
	return val, true, nil
}

func (r *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := r.client.SetNX(r.key(key), value, ttl).Result()
	if err != nil {
		return false, extErrors.Wrap(err, "Cannot set key in redis")
	}
	return ok, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.client.Set(r.key(key), value, ttl).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot set key in redis")
	}
	return nil
}

func (r *RedisStore) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := compareAndDelete.Run(r.client, []string{r.key(key)}, value).Int64()
	if err != nil {
		return false, extErrors.Wrap(err, "Cannot delete key from redis")
	}
	return n > 0, nil
}
