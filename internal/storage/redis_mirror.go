package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nuhub/internal/router"
)

const mirrorKeyPrefix = "nuhub:params:"

// RedisMirror keeps a read-only copy of every module's parameter store in
// one Redis hash per module, field = parameter name, value = JSON value.
type RedisMirror struct {
	client *redis.Client
}

// NewRedisMirror connects to redisURL ("redis://host:port/db" or a bare
// "host:port") and verifies the connection.
func NewRedisMirror(redisURL, password string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisMirror{client: rdb}, nil
}

// NewRedisMirrorFromClient wraps an existing client.
func NewRedisMirrorFromClient(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func MirrorKey(module string) string {
	return mirrorKeyPrefix + module
}

func (r *RedisMirror) Name() string { return "redis_mirror" }

// WriteBatch applies the batch in order through one pipeline, so the last
// write to a parameter wins.
func (r *RedisMirror) WriteBatch(ctx context.Context, batch []ParamUpdate) error {
	if r == nil || r.client == nil {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, u := range batch {
		raw, err := json.Marshal(u.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", u.Module, u.Name, err)
		}
		pipe.HSet(ctx, MirrorKey(u.Module), u.Name, string(raw))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Reset removes every mirrored hash. Stores start empty on each run, so
// the mirror does too.
func (r *RedisMirror) Reset(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, mirrorKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Params reads back the mirrored store of one module.
func (r *RedisMirror) Params(ctx context.Context, module string) (map[string]router.Value, error) {
	if r == nil || r.client == nil {
		return map[string]router.Value{}, nil
	}
	fields, err := r.client.HGetAll(ctx, MirrorKey(module)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]router.Value, len(fields))
	for name, raw := range fields {
		var v router.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid mirrored value for %s/%s: %w", module, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (r *RedisMirror) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
