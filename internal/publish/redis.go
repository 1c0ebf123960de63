package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tonylturner/cipwire/internal/config"
)

// Redis stores the latest message under prefix:device:name and, when
// enabled, also publishes it on prefix:device:changes.
type Redis struct {
	cfg    config.RedisConfig
	prefix string
	client *redis.Client
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg config.RedisConfig, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Redis{cfg: cfg, prefix: prefix, client: client}, nil
}

func (r *Redis) Name() string { return "redis " + r.cfg.Addr }

func redisKey(prefix string, msg Message) string {
	return joinKey(":", prefix, msg.Device, msg.Name)
}

func redisChannel(prefix string, msg Message) string {
	return joinKey(":", prefix, msg.Device, "changes")
}

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	ttl := time.Duration(r.cfg.TTLSec) * time.Second
	if err := r.client.Set(ctx, redisKey(r.prefix, msg), data, ttl).Err(); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	if r.cfg.Channel {
		if err := r.client.Publish(ctx, redisChannel(r.prefix, msg), data).Err(); err != nil {
			return fmt.Errorf("publish channel: %w", err)
		}
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
