// Package redis caches the staker's live status so dashboards and health
// probes can read it without touching the staking loop.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout.
const (
	keyStatus    = "staker:status"
	keyLastBlock = "staker:last_block"
)

// Client wraps Redis operations for the staker
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a new Redis client
func NewClient(cfg *Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Status is the cached supervisor snapshot.
type Status struct {
	State     string    `json:"state"`
	Height    int64     `json:"height"`
	Staking   bool      `json:"staking"`
	RateHPS   float64   `json:"rate_hps"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetStatus stores the supervisor snapshot with an expiration so a dead
// staker's status ages out.
func (c *Client) SetStatus(ctx context.Context, status *Status, expiration time.Duration) error {
	jsonData, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := c.rdb.Set(ctx, keyStatus, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}

	return nil
}

// GetStatus retrieves the cached supervisor snapshot
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	jsonData, err := c.rdb.Get(ctx, keyStatus).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("status not found")
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	status := &Status{}
	if err := json.Unmarshal([]byte(jsonData), status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return status, nil
}

// LastBlock is the most recent block this staker minted.
type LastBlock struct {
	Hash      string    `json:"hash"`
	Height    int64     `json:"height"`
	ProofType string    `json:"proof_type"`
	MintedAt  time.Time `json:"minted_at"`
}

// SetLastBlock stores the most recent minted block
func (c *Client) SetLastBlock(ctx context.Context, block *LastBlock) error {
	jsonData, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal last block: %w", err)
	}

	if err := c.rdb.Set(ctx, keyLastBlock, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set last block: %w", err)
	}

	return nil
}

// GetLastBlock retrieves the most recent minted block
func (c *Client) GetLastBlock(ctx context.Context) (*LastBlock, error) {
	jsonData, err := c.rdb.Get(ctx, keyLastBlock).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("last block not found")
		}
		return nil, fmt.Errorf("failed to get last block: %w", err)
	}

	block := &LastBlock{}
	if err := json.Unmarshal([]byte(jsonData), block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last block: %w", err)
	}

	return block, nil
}
