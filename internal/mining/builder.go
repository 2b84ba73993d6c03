package mining

import (
	"bytes"
	"context"
	"encoding/hex"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/errors"
)

// Builder turns raw node templates into drafts the staking loop can own.
type Builder interface {
	Build(ctx context.Context, tip *chain.TipSnapshot, address string) (*Template, error)
}

// TemplateBuilder assembles templates from the node's getblocktemplate
// output on top of a tip snapshot.
type TemplateBuilder struct {
	src    chain.TemplateSource
	params *chain.Params
}

// NewTemplateBuilder creates a builder over a template source.
func NewTemplateBuilder(src chain.TemplateSource, params *chain.Params) *TemplateBuilder {
	return &TemplateBuilder{src: src, params: params}
}

// Build fetches a template and assembles a draft paying the given address.
// The node's template must extend the snapshot's tip; a mismatch means the
// tip moved underneath us and surfaces as a chain error, which the supervisor
// loop reports as an error event before it stops.
func (b *TemplateBuilder) Build(ctx context.Context, tip *chain.TipSnapshot, address string) (*Template, error) {
	raw, err := b.src.GetBlockTemplate(ctx)
	if err != nil {
		return nil, err
	}

	if raw.PreviousHash != tip.Hash.String() {
		return nil, errors.New(errors.ErrorTypeChain, "build_template",
			"template does not extend the snapshot tip").
			WithContext("template_prev", raw.PreviousHash).
			WithContext("tip", tip.Hash.String())
	}

	heightScript, err := txscript.NewScriptBuilder().AddInt64(tip.Height + 1).Script()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "build_template",
			"failed to build height script")
	}

	addr, err := btcutil.DecodeAddress(address, b.params.Net)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWallet, "build_template",
			"reward address does not parse").
			WithContext("address", address)
	}
	rewardScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWallet, "build_template",
			"failed to build reward script")
	}

	rewardValue := b.params.StakeReward
	if raw.CoinbaseValue != nil {
		rewardValue = *raw.CoinbaseValue
	}

	bitsValue, err := strconv.ParseUint(raw.Bits, 16, 32)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeChain, "build_template",
			"template carries malformed bits").
			WithContext("bits", raw.Bits)
	}

	tmpl := NewTemplate(b.params, tip, uint32(bitsValue), uint32(raw.CurTime),
		heightScript, rewardScript, rewardValue)

	// Template transactions were selected and validated by the node; they
	// bypass local policy checks.
	for _, rawTx := range raw.Transactions {
		txBytes, err := hex.DecodeString(rawTx.Data)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeChain, "build_template",
				"template transaction hex is malformed").
				WithContext("tx_hash", rawTx.Hash)
		}

		tx := &wire.MsgTx{}
		if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeChain, "build_template",
				"failed to deserialize template transaction").
				WithContext("tx_hash", rawTx.Hash)
		}

		if err := tmpl.PushTx(tx); err != nil {
			return nil, err
		}
	}

	return tmpl, nil
}

var _ Builder = (*TemplateBuilder)(nil)
