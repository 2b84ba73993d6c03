// Package mining holds the mutable block machinery of the staking core: the
// block template, the one-shot mining job around it, the proof sum type, and
// the CPU nonce search with its optional worker-pool offload.
package mining

import (
	"bytes"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/scrypt"
)

// PowHashVersion is the first block version whose identity hash is plain
// sha256d. Earlier versions hash the 80-byte header with scrypt, salted with
// the header itself.
const PowHashVersion int32 = 7

// scrypt parameters for legacy header hashing.
const (
	scryptN     = 1024
	scryptR     = 1
	scryptP     = 1
	scryptDKLen = 32
)

// SerializeHeader renders the canonical 80-byte header wire form:
// version, prevBlock, merkleRoot, timestamp, bits, nonce, little-endian
// integers with hashes in wire order.
func SerializeHeader(header *wire.BlockHeader) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wire.MaxBlockHeaderPayload))
	// Serialize on a bytes.Buffer cannot fail.
	_ = header.Serialize(buf)
	return buf.Bytes()
}

// ParseHeader decodes an 80-byte header produced by SerializeHeader.
func ParseHeader(data []byte) (*wire.BlockHeader, error) {
	header := &wire.BlockHeader{}
	if err := header.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return header, nil
}

// HashForVersion computes a block's identity hash from its serialized
// header, keyed off the given block version.
func HashForVersion(version int32, headerBytes []byte) chainhash.Hash {
	if version < PowHashVersion {
		// scrypt(header, header): the legacy identity hash.
		digest, err := scrypt.Key(headerBytes, headerBytes, scryptN, scryptR, scryptP, scryptDKLen)
		if err != nil {
			// Parameters are compile-time constants; Key only fails on
			// invalid parameters.
			panic(err)
		}
		var hash chainhash.Hash
		copy(hash[:], digest)
		return hash
	}
	return chainhash.DoubleHashH(headerBytes)
}

// HeaderHash computes the identity hash of a header struct.
func HeaderHash(header *wire.BlockHeader) chainhash.Hash {
	return HashForVersion(header.Version, SerializeHeader(header))
}

// HashMeetsTarget reports whether a hash, interpreted as a big integer in the
// consensus byte order, is at most the target threshold.
func HashMeetsTarget(hash chainhash.Hash, target *big.Int) bool {
	return blockchain.HashToBig(&hash).Cmp(target) <= 0
}
