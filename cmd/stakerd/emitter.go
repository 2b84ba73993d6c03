package main

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/internal/database"
	"github.com/bardlex/gostake/internal/database/postgres"
	"github.com/bardlex/gostake/internal/database/redis"
	"github.com/bardlex/gostake/internal/messaging"
	"github.com/bardlex/gostake/internal/mining"
	"github.com/bardlex/gostake/internal/staker"
	"github.com/bardlex/gostake/pkg/log"
)

// sinkTimeout bounds each fan-out write so a slow backend cannot stall
// event delivery.
const sinkTimeout = 5 * time.Second

// eventSink fans supervisor events out to Kafka, the block ledger, the
// status cache and the metrics sink. Writes run off the staking loop's
// goroutine.
type eventSink struct {
	service string
	logger  *log.Logger
	kafka   *messaging.KafkaClient
	db      *database.Manager
}

func newEventSink(service string, logger *log.Logger, kafka *messaging.KafkaClient, db *database.Manager) *eventSink {
	return &eventSink{
		service: service,
		logger:  logger.WithComponent("events"),
		kafka:   kafka,
		db:      db,
	}
}

// EmitBlock implements staker.Emitter.
func (s *eventSink) EmitBlock(entry *chain.Entry, block *mining.Block) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		msg := &messaging.BlockMintedMessage{
			BlockHash: entry.Hash.String(),
			Height:    entry.Height,
			PrevBlock: block.Msg.Header.PrevBlock.String(),
			ProofType: mining.ProofKind(block.Proof),
			MintedAt:  time.Now(),
		}
		record := &postgres.MintedBlock{
			Hash:      entry.Hash.String(),
			Height:    entry.Height,
			PrevBlock: block.Msg.Header.PrevBlock.String(),
			ProofType: mining.ProofKind(block.Proof),
			Status:    postgres.BlockStatusAccepted,
		}

		var stakeValue int64
		if sp, ok := block.Proof.(*mining.StakeProof); ok {
			msg.StakeCoin = sp.Coin.String()
			msg.StakeValue = sp.Coin.Value
			msg.StakeTime = sp.Time
			record.StakeCoin = sql.NullString{String: sp.Coin.String(), Valid: true}
			record.StakeValue = sql.NullInt64{Int64: sp.Coin.Value, Valid: true}
			record.StakeTime = sql.NullInt64{Int64: int64(sp.Time), Valid: true}
			stakeValue = sp.Coin.Value
		}
		if pp, ok := block.Proof.(*mining.PowProof); ok {
			msg.Nonce = pp.Nonce
		}

		if s.kafka != nil {
			if err := s.kafka.PublishJSON(ctx, messaging.TopicBlocks, msg.BlockHash, msg); err != nil {
				s.logger.WithError(err).Error("failed to publish block event")
			}
		}

		if s.db != nil {
			if err := s.db.RecordSubmission(ctx, record); err != nil {
				s.logger.WithError(err).Error("failed to record minted block")
			}
			if s.db.Redis != nil {
				last := &redis.LastBlock{
					Hash:      msg.BlockHash,
					Height:    msg.Height,
					ProofType: msg.ProofType,
					MintedAt:  msg.MintedAt,
				}
				if err := s.db.Redis.SetLastBlock(ctx, last); err != nil {
					s.logger.WithError(err).Error("failed to cache last block")
				}
			}
			if s.db.Influx != nil {
				s.db.Influx.WriteBlockMetric(msg.Height, msg.BlockHash, msg.ProofType, stakeValue)
			}
		}
	}()
}

// EmitStatus implements staker.Emitter.
func (s *eventSink) EmitStatus(status mining.SearchStatus) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		hashes, _ := new(big.Float).SetInt(status.Hashes).Float64()

		if s.kafka != nil {
			msg := &messaging.StatusMessage{
				State:     "running",
				Hashes:    hashes,
				RateHPS:   status.Rate,
				UpdatedAt: time.Now(),
			}
			if err := s.kafka.PublishJSON(ctx, messaging.TopicStatus, s.service, msg); err != nil {
				s.logger.WithError(err).Debug("failed to publish status event")
			}
		}

		if s.db != nil && s.db.Influx != nil {
			s.db.Influx.WriteSearchMetric(0, hashes, status.Rate)
		}
	}()
}

// EmitError implements staker.Emitter.
func (s *eventSink) EmitError(err error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()

		if s.kafka != nil {
			msg := &messaging.ErrorMessage{
				Service:    s.service,
				Error:      err.Error(),
				OccurredAt: time.Now(),
			}
			if pubErr := s.kafka.PublishJSON(ctx, messaging.TopicErrors, s.service, msg); pubErr != nil {
				s.logger.WithError(pubErr).Error("failed to publish error event")
			}
		}
	}()
}

var _ staker.Emitter = (*eventSink)(nil)
