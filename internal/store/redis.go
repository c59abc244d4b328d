package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valpere/polytran/internal/errs"
)

// Namespaces keep settings and jobs apart inside one Redis database.
const (
	redisSettingsPrefix = "polytran:settings:"
	redisJobsPrefix     = "polytran:jobs:"
)

// Redis stores settings as plain keys and jobs as keys with a native TTL.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Settings() ConfigStore { return redisSettings{redisView{r.client, redisSettingsPrefix}} }

func (r *Redis) Jobs() JobStore { return redisJobs{redisView{r.client, redisJobsPrefix}} }

type redisView struct {
	client *redis.Client
	ns     string
}

func (v redisView) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := v.client.Get(ctx, v.ns+normalizeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, key)
	}
	return data, err
}

func (v redisView) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return v.client.Set(ctx, v.ns+normalizeKey(key), value, ttl).Err()
}

func (v redisView) Delete(ctx context.Context, key string) error {
	return v.client.Del(ctx, v.ns+normalizeKey(key)).Err()
}

func (v redisView) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := v.client.Scan(ctx, 0, v.ns+escapeGlob(normalizeKey(prefix))+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), v.ns))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

type redisSettings struct{ redisView }

func (v redisSettings) Set(ctx context.Context, key string, value []byte) error {
	return v.set(ctx, key, value, 0)
}

type redisJobs struct{ redisView }

func (v redisJobs) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("job key %s: ttl must be positive", key)
	}
	return v.set(ctx, key, value, ttl)
}

// PurgeExpired is a no-op: Redis evicts expired keys itself.
func (v redisJobs) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
