package kernel

import (
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
)

// CompactFromValue packs a coin value into compact difficulty form. The stake
// searcher feeds this to Check as the target bits, preserving the source
// chain's behavior of deriving the per-coin target from the coin's own value.
// The encoding is lossy for values that need more than 24 bits of mantissa.
func CompactFromValue(value int64) uint32 {
	return blockchain.BigToCompact(big.NewInt(value))
}

// CompactToTarget expands compact difficulty bits to the big-integer
// threshold the kernel quotient is compared against.
func CompactToTarget(bits uint32) *big.Int {
	return blockchain.CompactToBig(bits)
}
