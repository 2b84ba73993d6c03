// Package chain defines the chain-facing types and clients for the gostake
// daemon: tip snapshots, spendable coins, the RPC client used to build on and
// submit to the chain, and the ZMQ notifier that reports tip and mempool
// activity.
package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TipSnapshot is a read-only view of the chain tip a mining job is built
// against. A job holds exactly one snapshot; a newer tip invalidates the job.
type TipSnapshot struct {
	Height        int64
	Hash          chainhash.Hash
	PrevBlock     chainhash.Hash
	Time          uint32
	Bits          uint32
	StakeModifier [32]byte
}

// Coin is a spendable output owned by the staking account.
type Coin struct {
	Hash   chainhash.Hash // funding transaction
	Index  uint32
	Value  int64 // satoshis
	Height int64 // height of the confirming block
	Time   uint32
	Script []byte // locking script
}

// OutPoint returns the coin's previous-output reference.
func (c *Coin) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: c.Hash, Index: c.Index}
}

// Confirmations returns the coin's depth relative to the given tip height,
// counting the confirming block itself.
func (c *Coin) Confirmations(tipHeight int64) int64 {
	return tipHeight - c.Height + 1
}

// String returns the coin's outpoint in txid:vout form.
func (c *Coin) String() string {
	return fmt.Sprintf("%s:%d", c.Hash.String(), c.Index)
}

// PrevTx is the funding transaction behind a coin, as returned by the chain's
// coin view.
type PrevTx struct {
	Hash    chainhash.Hash
	Height  int64
	Time    uint32
	Outputs []*wire.TxOut
}

// Entry identifies a block the chain accepted.
type Entry struct {
	Height int64
	Hash   chainhash.Hash
}
