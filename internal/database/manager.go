// Package database provides unified database management for the gostake
// daemon. It coordinates the minted-block ledger (PostgreSQL), the live
// status cache (Redis) and the staking metrics sink (InfluxDB). Every
// backend is optional: a nil config skips it and the manager's helpers
// become no-ops for that backend.
package database

import (
	"context"
	"time"

	"github.com/bardlex/gostake/internal/database/influx"
	"github.com/bardlex/gostake/internal/database/postgres"
	"github.com/bardlex/gostake/internal/database/redis"
	"github.com/bardlex/gostake/pkg/errors"
	"github.com/bardlex/gostake/pkg/retry"
)

// Manager coordinates the optional storage backends.
type Manager struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	Influx   *influx.Client

	// Blocks is the minted-block ledger; nil without PostgreSQL.
	Blocks *postgres.BlockRepository

	retryConfig *retry.Config
}

// Config holds configuration for all storage backends. Nil members disable
// the backend.
type Config struct {
	Postgres *postgres.Config
	Redis    *redis.Config
	Influx   *influx.Config
}

// NewManager connects the configured backends, closing the ones already
// opened when a later one fails.
func NewManager(cfg *Config) (*Manager, error) {
	m := &Manager{retryConfig: retry.DatabaseConfig()}

	if cfg.Postgres != nil {
		pgClient, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_connection",
				"failed to connect to PostgreSQL")
		}
		m.Postgres = pgClient
		m.Blocks = postgres.NewBlockRepository(pgClient.DB())
	}

	if cfg.Redis != nil {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			m.closeQuiet()
			return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "redis_connection",
				"failed to connect to Redis")
		}
		m.Redis = redisClient
	}

	if cfg.Influx != nil {
		influxClient, err := influx.NewClient(cfg.Influx)
		if err != nil {
			m.closeQuiet()
			return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "influx_connection",
				"failed to connect to InfluxDB")
		}
		m.Influx = influxClient
	}

	return m, nil
}

// closeQuiet tears down whatever connected during a failed NewManager.
func (m *Manager) closeQuiet() {
	if m.Postgres != nil {
		_ = m.Postgres.Close()
	}
	if m.Redis != nil {
		_ = m.Redis.Close()
	}
	if m.Influx != nil {
		m.Influx.Close()
	}
}

// Close closes all connected backends.
func (m *Manager) Close() error {
	var lastErr error

	if m.Postgres != nil {
		if err := m.Postgres.Close(); err != nil {
			lastErr = errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_close",
				"failed to close PostgreSQL")
		}
	}
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			lastErr = errors.Wrap(err, errors.ErrorTypeDatabase, "redis_close",
				"failed to close Redis")
		}
	}
	if m.Influx != nil {
		m.Influx.Close()
	}

	return lastErr
}

// Health pings every connected backend.
func (m *Manager) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if m.Postgres != nil {
		if err := m.Postgres.Health(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_health",
				"PostgreSQL health check failed")
		}
	}
	if m.Redis != nil {
		if err := m.Redis.Health(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeDatabase, "redis_health",
				"Redis health check failed")
		}
	}
	if m.Influx != nil {
		if err := m.Influx.Health(ctx); err != nil {
			return errors.Wrap(err, errors.ErrorTypeDatabase, "influx_health",
				"InfluxDB health check failed")
		}
	}

	return nil
}

// RecordSubmission writes a block to the ledger at submission time, with
// database retries.
func (m *Manager) RecordSubmission(ctx context.Context, block *postgres.MintedBlock) error {
	if m.Blocks == nil {
		return nil
	}
	return retry.Do(ctx, m.retryConfig, func() error {
		return m.Blocks.CreateBlock(ctx, block)
	})
}

// RecordVerdict updates a ledger entry with the chain's verdict.
func (m *Manager) RecordVerdict(ctx context.Context, hash, status, rawBlock string) error {
	if m.Blocks == nil {
		return nil
	}
	return retry.Do(ctx, m.retryConfig, func() error {
		return m.Blocks.ResolveBlock(ctx, hash, status, rawBlock)
	})
}
