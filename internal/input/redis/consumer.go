package redis

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// Consumer reads event payloads from a Redis list.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Pop blocks until one payload is available or the block timeout passes.
// A timeout returns a nil payload and no error.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Drain pops every payload currently queued, batchSize at a time, without
// blocking. It is used by batch builds that snapshot the queue.
func (c *Consumer) Drain(ctx context.Context, batchSize int) ([][]byte, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var out [][]byte
	for {
		items, err := c.client.LPopCount(ctx, c.key, batchSize).Result()
		if err == redis.Nil {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("drain %s: %w", c.key, err)
		}
		for _, item := range items {
			out = append(out, []byte(item))
		}
		if len(items) < batchSize {
			return out, nil
		}
	}
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
