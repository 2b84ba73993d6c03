// Package kernel implements the proof-of-stake kernel predicate and the
// stake-modifier evolution. Everything here is pure and synchronous: the
// searcher calls Check once per (coin, time) pair, potentially from a worker,
// so no function in this package may block or touch shared state.
package kernel

import (
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
)

// stakeBufferSize is the serialized kernel preimage:
// modifier(32) + coinTime(4) + txHash(32) + index(4) + timeTx(4).
const stakeBufferSize = 32 + 4 + 32 + 4 + 4

// Check evaluates the stake kernel for one (coin, time) pair against the tip
// snapshot. The kernel succeeds when
//
//	hash256(modifier || coinTime || prevout.hash || prevout.index || timeTx) / coin.value
//
// is at most the target encoded by blkBits, tying acceptance probability
// proportionally to the coin's value. The returned hash is the kernel hash
// and feeds the next stake modifier; it is the zero hash when a precondition
// fails.
func Check(params *chain.Params, prev *chain.TipSnapshot, blkBits uint32, coin *chain.Coin, prevOut wire.OutPoint, timeTx uint32) (bool, chainhash.Hash) {
	var zero chainhash.Hash

	if coin == nil {
		return false, zero
	}
	if (prev.Height+1)-coin.Height < params.StakeMinConfirmations {
		return false, zero
	}
	if coin.Value <= 0 {
		return false, zero
	}

	buf := make([]byte, 0, stakeBufferSize)
	buf = append(buf, prev.StakeModifier[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, coin.Time)
	buf = append(buf, prevOut.Hash[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, prevOut.Index)
	buf = binary.LittleEndian.AppendUint32(buf, timeTx)

	kernelHash := chainhash.DoubleHashH(buf)

	// 256-bit truncating division: the coin's value scales the threshold.
	quotient := new(big.Int).Div(blockchain.HashToBig(&kernelHash), big.NewInt(coin.Value))
	target := blockchain.CompactToBig(blkBits)

	return quotient.Cmp(target) <= 0, kernelHash
}

// NextStakeModifier derives the modifier for the block after a successful
// kernel: hash256(kernelHash || prevModifier), in that byte order. Pure and
// deterministic; no wall-clock input.
func NextStakeModifier(kernelHash chainhash.Hash, prevModifier [32]byte) [32]byte {
	buf := make([]byte, 0, chainhash.HashSize+32)
	buf = append(buf, kernelHash[:]...)
	buf = append(buf, prevModifier[:]...)

	var next [32]byte
	copy(next[:], chainhash.DoubleHashB(buf))
	return next
}
