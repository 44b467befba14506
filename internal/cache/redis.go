package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mrlokans/shelfsync/internal/config"
)

const scanBatch = 200

// Redis stores entries as JSON strings under "<prefix>:<namespace>:<key>". The
// generation counter lives at "<prefix>~gen", outside the entry keyspace, so a
// flush never resets it.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg config.Redis, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.Prefix, ttl), nil
}

func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "shelfsync"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(namespace, key string) string {
	return r.prefix + ":" + namespace + ":" + key
}

func (r *Redis) Get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, r.key(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(namespace, key), data, r.ttl).Err()
}

func (r *Redis) genKey() string {
	return r.prefix + "~gen"
}

func (r *Redis) Generation(ctx context.Context) (uint64, error) {
	gen, err := r.client.Get(ctx, r.genKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetAt watches the generation key so an invalidation from any process between
// the check and the write aborts the write.
func (r *Redis) SetAt(ctx context.Context, namespace, key string, value any, gen uint64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	genKey := r.genKey()
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, r.key(namespace, key), data, r.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// bump advances the generation before entries are removed, so a reader that
// loaded before the removal can no longer store.
func (r *Redis) bump(ctx context.Context) error {
	return r.client.Incr(ctx, r.genKey()).Err()
}

func (r *Redis) InvalidateAll(ctx context.Context, namespace string) error {
	if err := r.bump(ctx); err != nil {
		return err
	}
	return r.unlinkMatching(ctx, escapePattern(r.prefix+":"+namespace+":")+"*")
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := r.bump(ctx); err != nil {
		return err
	}
	return r.unlinkMatching(ctx, escapePattern(r.prefix+":"+prefix)+"*")
}

func (r *Redis) Flush(ctx context.Context) error {
	if err := r.bump(ctx); err != nil {
		return err
	}
	return r.unlinkMatching(ctx, escapePattern(r.prefix+":")+"*")
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) unlinkMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// escapePattern quotes glob metacharacters so reader ids match literally.
func escapePattern(s string) string {
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
