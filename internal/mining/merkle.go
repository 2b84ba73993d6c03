package mining

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// CalcMerkleRoot computes the merkle root over a transaction list using the
// standard tree: pairs hashed with double SHA-256, the last hash duplicated
// on odd levels.
func CalcMerkleRoot(txs []*wire.MsgTx) chainhash.Hash {
	if len(txs) == 0 {
		return chainhash.Hash{}
	}

	level := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		level[i] = tx.TxHash()
	}

	for len(level) > 1 {
		next := make([]chainhash.Hash, 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}

			concat := make([]byte, 0, 2*chainhash.HashSize)
			concat = append(concat, left[:]...)
			concat = append(concat, right[:]...)
			first := sha256.Sum256(concat)
			second := sha256.Sum256(first[:])

			var h chainhash.Hash
			copy(h[:], second[:])
			next = append(next, h)
		}

		level = next
	}

	return level[0]
}
