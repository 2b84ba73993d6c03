package mining

import (
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/errors"
)

// maxBlockSize caps the serialized size of a produced block.
const maxBlockSize = 1000000

// UtxoView resolves previous outputs during template policy checks.
type UtxoView interface {
	// LookupOutput returns the output an outpoint spends, or nil when the
	// view does not know it.
	LookupOutput(op wire.OutPoint) *wire.TxOut
}

// Template is the mutable draft of the next block. A job owns it exclusively;
// once either commit path runs the template is frozen and further mutation
// fails.
type Template struct {
	params    *chain.Params
	version   int32
	height    int64
	prevBlock chainhash.Hash
	bits      uint32
	ts        uint32

	// txs[0] is the coinbase; txs[1] the coinstake on the stake path.
	txs []*wire.MsgTx

	heightScript []byte
	rewardScript []byte
	rewardValue  int64

	merkleRoot *chainhash.Hash
	committed  bool
}

// NewTemplate creates a draft on top of the given tip. The coinbase is
// installed immediately with a zeroed extra-nonce pair.
func NewTemplate(params *chain.Params, tip *chain.TipSnapshot, bits uint32, ts uint32, heightScript, rewardScript []byte, rewardValue int64) *Template {
	t := &Template{
		params:       params,
		version:      params.BlockVersion,
		height:       tip.Height + 1,
		prevBlock:    tip.Hash,
		bits:         bits,
		ts:           ts,
		heightScript: heightScript,
		rewardScript: rewardScript,
		rewardValue:  rewardValue,
	}
	t.txs = []*wire.MsgTx{t.buildCoinbase(0, 0)}
	return t
}

// buildCoinbase assembles the coinbase transaction for an extra-nonce pair.
// The signature script is height (BIP 34), the coinbase flags, then the two
// extra-nonce counters little-endian.
func (t *Template) buildCoinbase(n1, n2 uint32) *wire.MsgTx {
	script := make([]byte, 0, len(t.heightScript)+len(t.params.CoinbaseFlags)+8)
	script = append(script, t.heightScript...)
	script = append(script, []byte(t.params.CoinbaseFlags)...)
	script = binary.LittleEndian.AppendUint32(script, n1)
	script = binary.LittleEndian.AppendUint32(script, n2)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  script,
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    t.rewardValue,
		PkScript: t.rewardScript,
	})
	return tx
}

// Version returns the block version the template stamps on its header.
func (t *Template) Version() int32 { return t.version }

// Height returns the height the template builds at.
func (t *Template) Height() int64 { return t.height }

// PrevBlock returns the tip hash the template was built on.
func (t *Template) PrevBlock() chainhash.Hash { return t.prevBlock }

// Bits returns the compact difficulty carried in the header.
func (t *Template) Bits() uint32 { return t.bits }

// Timestamp returns the template's current header timestamp.
func (t *Template) Timestamp() uint32 { return t.ts }

// Committed reports whether either commit path has frozen the template.
func (t *Template) Committed() bool { return t.committed }

// TxCount returns the number of transactions currently in the draft.
func (t *Template) TxCount() int { return len(t.txs) }

// AddTx validates a transaction against the view and appends it. Sanity,
// size, unknown-input, input-script (signature) and fee violations surface as
// policy errors.
func (t *Template) AddTx(tx *wire.MsgTx, view UtxoView) error {
	if t.committed {
		return errors.New(errors.ErrorTypePolicy, "add_tx", "template is frozen")
	}

	if err := blockchain.CheckTransactionSanity(btcutil.NewTx(tx)); err != nil {
		return errors.Wrap(err, errors.ErrorTypePolicy, "add_tx",
			"transaction failed sanity checks")
	}

	size := tx.SerializeSize()
	for _, cur := range t.txs {
		size += cur.SerializeSize()
	}
	if size+wire.MaxBlockHeaderPayload > maxBlockSize {
		return errors.New(errors.ErrorTypePolicy, "add_tx", "block size limit exceeded").
			WithContext("size", size)
	}

	var inValue int64
	for i, in := range tx.TxIn {
		out := view.LookupOutput(in.PreviousOutPoint)
		if out == nil {
			return errors.New(errors.ErrorTypePolicy, "add_tx", "spends unknown output").
				WithContext("outpoint", in.PreviousOutPoint.String())
		}
		fetcher := txscript.NewCannedPrevOutputFetcher(out.PkScript, out.Value)
		vm, err := txscript.NewEngine(out.PkScript, tx, i, txscript.StandardVerifyFlags, nil, nil, out.Value, fetcher)
		if err == nil {
			err = vm.Execute()
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypePolicy, "add_tx", "input script verification failed").
				WithContext("outpoint", in.PreviousOutPoint.String())
		}
		inValue += out.Value
	}
	var outValue int64
	for _, out := range tx.TxOut {
		outValue += out.Value
	}
	if outValue > inValue {
		return errors.New(errors.ErrorTypePolicy, "add_tx", "negative fee").
			WithContext("in", inValue).
			WithContext("out", outValue)
	}

	t.txs = append(t.txs, tx)
	t.Refresh()
	return nil
}

// PushTx appends a transaction without policy validation. The stake path
// uses this to insert the coinstake it built itself.
func (t *Template) PushTx(tx *wire.MsgTx) error {
	if t.committed {
		return errors.New(errors.ErrorTypePolicy, "push_tx", "template is frozen")
	}
	t.txs = append(t.txs, tx)
	t.Refresh()
	return nil
}

// Refresh drops the derived caches so the next read recomputes them.
func (t *Template) Refresh() {
	t.merkleRoot = nil
}

// MerkleRoot returns the merkle root over the current transaction list,
// recomputing it if the list changed since the last call.
func (t *Template) MerkleRoot() chainhash.Hash {
	if t.merkleRoot == nil {
		root := CalcMerkleRoot(t.txs)
		t.merkleRoot = &root
	}
	return *t.merkleRoot
}

// Header renders the canonical 80-byte header for an explicit merkle root,
// timestamp and nonce.
func (t *Template) Header(root chainhash.Hash, ts, nonce uint32) []byte {
	header := &wire.BlockHeader{
		Version:    t.version,
		PrevBlock:  t.prevBlock,
		MerkleRoot: root,
		Timestamp:  time.Unix(int64(ts), 0),
		Bits:       t.bits,
		Nonce:      nonce,
	}
	return SerializeHeader(header)
}

// HeaderBytes renders the header for the template's current transaction set.
func (t *Template) HeaderBytes(ts, nonce uint32) []byte {
	return t.Header(t.MerkleRoot(), ts, nonce)
}

// GetProof captures the degrees of freedom of a solved nonce search.
func (t *Template) GetProof(n1, n2, ts, nonce uint32) *PowProof {
	return &PowProof{N1: n1, N2: n2, Time: ts, Nonce: nonce}
}

// Commit freezes the template on the work path: the final extra-nonce pair is
// folded into the coinbase, the merkle root recomputed, and the finished
// block returned. Commit is single-shot.
func (t *Template) Commit(p *PowProof) (*Block, error) {
	if t.committed {
		return nil, errors.New(errors.ErrorTypeInternal, "commit", "template already committed")
	}

	t.txs[0] = t.buildCoinbase(p.N1, p.N2)
	t.Refresh()
	t.ts = p.Time

	msg := t.buildMsgBlock(p.Time, p.Nonce)
	t.committed = true

	return &Block{Msg: msg, Proof: p, Height: t.height}, nil
}

// CommitCoinstake freezes the template on the stake path: the coinstake is
// installed at index 1, the header timestamp set to the quantized stake time,
// and the unsigned block returned for the caller to sign. Single-shot.
func (t *Template) CommitCoinstake(nTime uint32, coin *chain.Coin) (*Block, error) {
	if t.committed {
		return nil, errors.New(errors.ErrorTypeInternal, "commit_coinstake", "template already committed")
	}
	if nTime&t.params.StakeTimestampMask != 0 {
		return nil, errors.New(errors.ErrorTypePolicy, "commit_coinstake",
			"stake time is not on the quantization grid").
			WithContext("n_time", nTime)
	}

	// The stake block's reward moves into the coinstake; the coinbase keeps
	// only its marker role.
	t.txs[0].TxOut[0].Value = 0

	coinstake := wire.NewMsgTx(wire.TxVersion)
	coinstake.AddTxIn(&wire.TxIn{
		PreviousOutPoint: coin.OutPoint(),
		Sequence:         0xffffffff,
	})
	// Output 0 is the empty coinstake marker.
	coinstake.AddTxOut(&wire.TxOut{Value: 0, PkScript: nil})
	coinstake.AddTxOut(&wire.TxOut{
		Value:    coin.Value + t.params.StakeReward,
		PkScript: coin.Script,
	})

	rest := make([]*wire.MsgTx, 0, len(t.txs)+1)
	rest = append(rest, t.txs[0], coinstake)
	rest = append(rest, t.txs[1:]...)
	t.txs = rest

	t.Refresh()
	t.ts = nTime

	msg := t.buildMsgBlock(nTime, 0)
	t.committed = true

	return &Block{
		Msg:    msg,
		Proof:  &StakeProof{Time: nTime, Coin: coin},
		Height: t.height,
	}, nil
}

// buildMsgBlock assembles the wire block for the template's current state.
func (t *Template) buildMsgBlock(ts, nonce uint32) *wire.MsgBlock {
	msg := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    t.version,
			PrevBlock:  t.prevBlock,
			MerkleRoot: t.MerkleRoot(),
			Timestamp:  time.Unix(int64(ts), 0),
			Bits:       t.bits,
			Nonce:      nonce,
		},
	}
	msg.Transactions = append(msg.Transactions, t.txs...)
	return msg
}

// Coinstake returns the coinstake transaction of a committed stake template,
// or nil when absent. The wallet mutates it in place while signing.
func (t *Template) Coinstake() *wire.MsgTx {
	if len(t.txs) < 2 {
		return nil
	}
	return t.txs[1]
}
