package staker

import (
	"context"
	"encoding/hex"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/internal/kernel"
	"github.com/bardlex/gostake/internal/mining"
	"github.com/bardlex/gostake/internal/wallet"
)

// searchStake runs the proof-of-stake path: per 16-second slot, walk the
// staking account's coins in (txid, vout) order and evaluate the kernel for
// each until one passes or the job is destroyed. Work is never repeated
// within a slot; a slot with no winner waits out the grid and retries with
// refreshed coins.
func (s *Staker) searchStake(ctx context.Context, job *mining.Job, tip *chain.TipSnapshot) (*mining.Block, error) {
	mask := s.params.StakeTimestampMask
	var lastTime uint32

	for !job.Destroyed() {
		now := uint32(s.clock.Now().Unix())
		nTime := now &^ mask

		if nTime == lastTime {
			s.yield()
			continue
		}
		lastTime = nTime

		coins, err := s.wallet.CoinsOfAccount(ctx, s.cfg.Account)
		if err != nil {
			return nil, err
		}

		for _, coin := range coins {
			if job.Destroyed() {
				return nil, nil
			}
			if (tip.Height+1)-coin.Height < s.params.StakeMinConfirmations {
				continue
			}

			// The previous transaction is resolved the way the chain sees
			// it; the kernel weight itself comes from the coin directly.
			if _, err := s.chain.GetCoins(ctx, &coin.Hash); err != nil {
				s.logger.WithError(err).WithCoin(coin.String(), coin.Value).
					Warn("skipping coin, funding tx lookup failed")
				continue
			}

			bits := kernel.CompactFromValue(coin.Value)
			if s.cfg.UseBlockBits {
				bits = tip.Bits
			}

			ok, kernelHash := kernel.Check(s.params, tip, bits, coin, coin.OutPoint(), nTime)
			if !ok {
				continue
			}

			s.logger.LogKernelFound(coin.String(), coin.Value, nTime)

			// The modifier the accepted block will carry forward.
			next := kernel.NextStakeModifier(kernelHash, tip.StakeModifier)
			s.logger.Debug("next stake modifier",
				"kernel_hash", kernelHash.String(),
				"modifier", hex.EncodeToString(next[:]),
			)

			return s.buildStakeBlock(ctx, job, coin, nTime)
		}
	}

	return nil, nil
}

// buildStakeBlock commits the coinstake, signs it with the coin's key,
// refreshes the merkle root, and signs the block itself.
func (s *Staker) buildStakeBlock(ctx context.Context, job *mining.Job, coin *chain.Coin, nTime uint32) (*mining.Block, error) {
	block, err := job.CommitCoinstakeTime(nTime, coin)
	if err != nil {
		return nil, err
	}
	if block == nil {
		// Destroyed between the kernel hit and the commit.
		return nil, nil
	}

	coinstake := block.Msg.Transactions[1]
	if err := s.wallet.SignCoinstake(ctx, coinstake, coin); err != nil {
		return nil, err
	}
	block.RefreshMerkleRoot()

	address, err := wallet.AddressForScript(coin.Script, s.params.Net)
	if err != nil {
		return nil, err
	}
	priv, _, err := s.wallet.PrivateKey(ctx, address)
	if err != nil {
		return nil, err
	}

	block.SetSignature(wallet.SignBlockHash(block.Hash(), priv))
	return block, nil
}
