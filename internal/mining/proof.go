package mining

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
)

// Proof is the tagged variant carried by a finished block: either a
// proof-of-work nonce or a proof-of-stake (time, coin, signature) triple.
type Proof interface {
	proofKind() string
}

// PowProof is a solved nonce search. The extra-nonce pair records where the
// coinbase stood when the nonce was found.
type PowProof struct {
	N1    uint32
	N2    uint32
	Time  uint32
	Nonce uint32
}

func (*PowProof) proofKind() string { return "work" }

// StakeProof is a successful kernel: the quantized stake time, the coin that
// satisfied the predicate, and the block signature added after signing.
type StakeProof struct {
	Time uint32
	Coin *chain.Coin
	Sig  []byte
}

func (*StakeProof) proofKind() string { return "stake" }

// ProofKind names a proof variant for logs and persistence.
func ProofKind(p Proof) string {
	if p == nil {
		return "none"
	}
	return p.proofKind()
}

// Block is a finished block produced by a job commit. Stake blocks carry a
// signature over the identity hash appended after the wire encoding.
type Block struct {
	Msg       *wire.MsgBlock
	Proof     Proof
	Height    int64
	Signature []byte
}

// Hash returns the block's identity hash, scrypt or sha256d depending on the
// header version.
func (b *Block) Hash() chainhash.Hash {
	return HeaderHash(&b.Msg.Header)
}

// RefreshMerkleRoot recomputes the header merkle root from the block's
// transactions. Signing the coinstake changes its txid, so the stake path
// refreshes the root after the wallet signs and before the block itself is
// signed.
func (b *Block) RefreshMerkleRoot() {
	b.Msg.Header.MerkleRoot = CalcMerkleRoot(b.Msg.Transactions)
}

// SetSignature attaches the block signature produced by the wallet and
// mirrors it into a stake proof.
func (b *Block) SetSignature(sig []byte) {
	b.Signature = sig
	if sp, ok := b.Proof.(*StakeProof); ok {
		sp.Sig = sig
	}
}

// Serialize renders the block in wire form. The block signature always
// follows the standard encoding as a var-length byte string (empty for
// unsigned blocks), the layout the proof-of-stake lineage uses on the wire.
func (b *Block) Serialize() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, b.Msg.SerializeSize()+len(b.Signature)+9))
	if err := b.Msg.Serialize(buf); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(buf, 0, b.Signature); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hex renders the serialized block as a hexadecimal string for submission.
func (b *Block) Hex() (string, error) {
	raw, err := b.Serialize()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
