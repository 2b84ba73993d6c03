// Package main implements stakerd, the gostake block-production daemon. It
// builds candidate blocks on the chain tip, searches for a stake kernel (or a
// proof-of-work nonce), signs and submits the result, and reacts to tip and
// mempool events from the node.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/internal/config"
	"github.com/bardlex/gostake/internal/database"
	"github.com/bardlex/gostake/internal/database/influx"
	"github.com/bardlex/gostake/internal/database/postgres"
	"github.com/bardlex/gostake/internal/database/redis"
	"github.com/bardlex/gostake/internal/messaging"
	"github.com/bardlex/gostake/internal/mining"
	"github.com/bardlex/gostake/internal/staker"
	"github.com/bardlex/gostake/internal/wallet"
	"github.com/bardlex/gostake/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting stakerd",
		"version", cfg.Version,
		"chain_host", cfg.ChainRPCHost,
		"chain_port", cfg.ChainRPCPort,
		"network", cfg.Network,
		"staking", cfg.Staking,
	)

	params := chain.MainNetParams()
	if cfg.Network == "regtest" {
		params = chain.RegressionNetParams()
	}

	// Chain RPC client
	chainClient, err := chain.NewRPCClient(
		cfg.ChainRPCHost,
		cfg.ChainRPCPort,
		cfg.ChainRPCUser,
		cfg.ChainRPCPassword,
	)
	if err != nil {
		logger.WithError(err).Error("failed to create chain RPC client")
		os.Exit(1)
	}
	defer chainClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()
	if err := chainClient.Ping(pingCtx); err != nil {
		logger.WithError(err).Error("failed to connect to chain node")
		os.Exit(1)
	}
	logger.Info("connected to chain node")

	// Wallet client
	walletClient, err := wallet.NewRPCWallet(
		cfg.ChainRPCHost,
		cfg.ChainRPCPort,
		cfg.ChainRPCUser,
		cfg.ChainRPCPassword,
		params,
	)
	if err != nil {
		logger.WithError(err).Error("failed to create wallet RPC client")
		os.Exit(1)
	}
	defer walletClient.Close()

	// Optional storage backends
	dbManager, err := database.NewManager(databaseConfig(cfg))
	if err != nil {
		logger.WithError(err).Error("failed to connect storage backends")
		os.Exit(1)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			logger.WithError(err).Error("failed to close storage backends")
		}
	}()

	// Optional Kafka event stream
	var kafkaClient *messaging.KafkaClient
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient = messaging.NewKafkaClient(cfg.KafkaBrokers, logger.Logger)
		defer func() {
			if err := kafkaClient.Close(); err != nil {
				logger.WithError(err).Error("failed to close Kafka client")
			}
		}()
	}

	sink := newEventSink(cfg.ServiceName, logger, kafkaClient, dbManager)

	// The supervisor
	builder := mining.NewTemplateBuilder(chainClient, params)
	st := staker.New(
		staker.Config{
			Account:        cfg.StakingAccount,
			RewardAddress:  cfg.RewardAddress,
			Staking:        cfg.Staking,
			UseBlockBits:   cfg.UseBlockBits,
			WorkerPoolSize: cfg.WorkerPoolSize,
		},
		params, chainClient, walletClient, builder, nil, logger, sink,
	)
	st.Open()
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ZMQ tip/mempool notifications drive reactive job invalidation
	notifier, err := chain.NewZMQNotifier(cfg.ChainZMQAddr, logger.Logger)
	if err != nil {
		logger.WithError(err).Error("failed to create ZMQ notifier")
		os.Exit(1)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.WithError(err).Error("failed to close ZMQ notifier")
		}
	}()

	handler := chain.NewTipEventHandler(logger.Logger)
	handler.SetTipHandler(func(string) error {
		tipCtx, tipCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
		defer tipCancel()
		tip, err := chainClient.Tip(tipCtx)
		if err != nil {
			return err
		}
		st.NotifyTip(tip)
		return nil
	})
	handler.SetMempoolHandler(func(string) error {
		st.NotifyEntry()
		return nil
	})

	for _, topic := range []string{chain.TopicHashBlock, chain.TopicHashTx} {
		if err := notifier.Subscribe(topic); err != nil {
			logger.WithError(err).Error("failed to subscribe to ZMQ topic")
			os.Exit(1)
		}
	}
	if err := notifier.Connect(); err != nil {
		logger.WithError(err).Error("failed to connect ZMQ notifier")
		os.Exit(1)
	}

	go func() {
		if err := notifier.Listen(ctx, handler.HandleMessage); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("ZMQ listener failed")
		}
	}()

	// Periodic status snapshot for the cache
	go statusLoop(ctx, cfg, st, chainClient, dbManager, logger)

	// Start staking
	if err := st.Start(); err != nil {
		logger.WithError(err).Error("failed to start staker")
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	if err := st.Stop(); err != nil {
		logger.WithError(err).Error("failed to stop staker")
		os.Exit(1)
	}

	logger.Info("stakerd stopped")
}

// statusLoop refreshes the cached supervisor snapshot at the configured
// interval.
func statusLoop(ctx context.Context, cfg *config.Config, st *staker.Staker, chainClient *chain.RPCClient, db *database.Manager, logger *log.Logger) {
	if db == nil || db.Redis == nil {
		return
	}

	ticker := time.NewTicker(cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tipCtx, tipCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
		tip, err := chainClient.Tip(tipCtx)
		tipCancel()
		if err != nil {
			logger.WithError(err).Debug("status snapshot tip fetch failed")
			continue
		}

		state := "idle"
		if st.Running() {
			state = "running"
		}

		status := &redis.Status{
			State:     state,
			Height:    tip.Height,
			Staking:   cfg.Staking,
			UpdatedAt: time.Now(),
		}

		setCtx, setCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.Redis.SetStatus(setCtx, status, 3*cfg.StatusInterval); err != nil {
			logger.WithError(err).Debug("status snapshot write failed")
		}
		setCancel()
	}
}

// databaseConfig translates env config into backend configs, leaving
// unconfigured backends nil.
func databaseConfig(cfg *config.Config) *database.Config {
	out := &database.Config{}

	if cfg.PostgresHost != "" {
		out.Postgres = &postgres.Config{
			Host:         cfg.PostgresHost,
			Port:         cfg.PostgresPort,
			Database:     cfg.PostgresDatabase,
			User:         cfg.PostgresUser,
			Password:     cfg.PostgresPassword,
			SSLMode:      cfg.PostgresSSLMode,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			MaxLifetime:  30 * time.Minute,
		}
	}

	if cfg.RedisAddr != "" {
		out.Redis = &redis.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}

	if cfg.InfluxURL != "" {
		out.Influx = &influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}
	}

	return out
}
