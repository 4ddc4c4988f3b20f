package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/healthops/config"
)

// redisPinger adapts a go-redis client to health.Pinger.
type redisPinger struct {
	client *redis.Client
}

func newRedisPinger(cfg config.RedisConfig, timeout time.Duration) *redisPinger {
	return &redisPinger{client: redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     2,
		MaxRetries:   -1,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})}
}

func (p *redisPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (p *redisPinger) Close() error {
	return p.client.Close()
}
