// Package config provides configuration management for the gostake daemon.
// It handles loading configuration from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the global configuration for the gostake daemon
type Config struct {
	// Service identification
	ServiceName string
	Version     string
	Environment string

	// Chain node connection
	ChainRPCHost     string
	ChainRPCPort     int
	ChainRPCUser     string
	ChainRPCPassword string
	ChainZMQAddr     string
	Network          string // "mainnet" or "regtest"

	// Staking
	Staking        bool
	StakingAccount string
	RewardAddress  string
	UseBlockBits   bool
	WorkerPoolSize int

	// Kafka configuration (empty brokers disable event publishing)
	KafkaBrokers []string

	// Storage backends (empty values disable the backend)
	PostgresHost     string
	PostgresPort     int
	PostgresDatabase string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	InfluxURL        string
	InfluxToken      string
	InfluxOrg        string
	InfluxBucket     string

	// Performance tuning
	StatusInterval time.Duration
	RPCTimeout     time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		// Service defaults
		ServiceName: getEnv("SERVICE_NAME", "gostake"),
		Version:     getEnv("VERSION", "dev"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Chain node defaults
		ChainRPCHost:     getEnv("CHAIN_RPC_HOST", "localhost"),
		ChainRPCPort:     getEnvInt("CHAIN_RPC_PORT", 8332),
		ChainRPCUser:     getEnv("CHAIN_RPC_USER", ""),
		ChainRPCPassword: getEnv("CHAIN_RPC_PASSWORD", ""),
		ChainZMQAddr:     getEnv("CHAIN_ZMQ_ADDR", "tcp://localhost:28332"),
		Network:          getEnv("NETWORK", "mainnet"),

		// Staking defaults
		Staking:        getEnvBool("STAKING", true),
		StakingAccount: getEnv("STAKING_ACCOUNT", ""),
		RewardAddress:  getEnv("REWARD_ADDRESS", ""),
		UseBlockBits:   getEnvBool("STAKE_USE_BLOCK_BITS", false),
		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 0),

		// Kafka defaults
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),

		// Storage defaults
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresDatabase: getEnv("POSTGRES_DATABASE", "gostake"),
		PostgresUser:     getEnv("POSTGRES_USER", "gostake"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		InfluxURL:        getEnv("INFLUX_URL", ""),
		InfluxToken:      getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:        getEnv("INFLUX_ORG", "gostake"),
		InfluxBucket:     getEnv("INFLUX_BUCKET", "staking"),

		// Performance defaults
		StatusInterval: getEnvDuration("STATUS_INTERVAL", 30*time.Second),
		RPCTimeout:     getEnvDuration("RPC_TIMEOUT", 30*time.Second),

		// Logging defaults
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate performs basic validation of configuration values
func (c *Config) validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME cannot be empty")
	}

	if c.ChainRPCPort <= 0 || c.ChainRPCPort > 65535 {
		return fmt.Errorf("CHAIN_RPC_PORT must be between 1 and 65535")
	}

	if c.Network != "mainnet" && c.Network != "regtest" {
		return fmt.Errorf("NETWORK must be mainnet or regtest")
	}

	if !c.Staking && c.RewardAddress == "" {
		return fmt.Errorf("REWARD_ADDRESS is required when STAKING is off")
	}

	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WORKER_POOL_SIZE cannot be negative")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
