package mining

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/errors"
)

type fakeTemplateSource struct {
	result *btcjson.GetBlockTemplateResult
}

func (f *fakeTemplateSource) GetBlockTemplate(context.Context) (*btcjson.GetBlockTemplateResult, error) {
	return f.result, nil
}

func testAddress(t *testing.T, params *chain.Params) string {
	t.Helper()
	addr, err := btcutil.NewAddressPubKeyHash(make([]byte, 20), params.Net)
	if err != nil {
		t.Fatalf("failed to build address: %v", err)
	}
	return addr.EncodeAddress()
}

func encodeTx(t *testing.T, tx *wire.MsgTx) string {
	t.Helper()
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("failed to serialize transaction: %v", err)
	}
	return hex.EncodeToString(buf.Bytes())
}

func TestTemplateBuilderBuild(t *testing.T) {
	params := chain.RegressionNetParams()
	tip := testTip()

	memTx := wire.NewMsgTx(wire.TxVersion)
	memTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 1}, SignatureScript: []byte{0x51}})
	memTx.AddTxOut(&wire.TxOut{Value: 10, PkScript: []byte{0x51}})

	coinbaseValue := int64(5000000000)
	src := &fakeTemplateSource{result: &btcjson.GetBlockTemplateResult{
		Bits:          "207fffff",
		CurTime:       0x60000010,
		Height:        tip.Height + 1,
		PreviousHash:  tip.Hash.String(),
		CoinbaseValue: &coinbaseValue,
		Transactions: []btcjson.GetBlockTemplateResultTx{
			{Data: encodeTx(t, memTx), Hash: memTx.TxHash().String()},
		},
	}}

	builder := NewTemplateBuilder(src, params)
	tmpl, err := builder.Build(context.Background(), tip, testAddress(t, params))
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}

	if tmpl.PrevBlock() != tip.Hash {
		t.Error("template does not build on the tip")
	}
	if tmpl.Height() != tip.Height+1 {
		t.Errorf("template height = %d, want %d", tmpl.Height(), tip.Height+1)
	}
	if tmpl.Bits() != 0x207fffff {
		t.Errorf("template bits = %08x, want 207fffff", tmpl.Bits())
	}
	if tmpl.Timestamp() != 0x60000010 {
		t.Errorf("template timestamp = %x, want 60000010", tmpl.Timestamp())
	}
	if tmpl.TxCount() != 2 {
		t.Errorf("template has %d transactions, want coinbase + 1", tmpl.TxCount())
	}
}

func TestTemplateBuilderTipMismatch(t *testing.T) {
	params := chain.RegressionNetParams()
	tip := testTip()

	src := &fakeTemplateSource{result: &btcjson.GetBlockTemplateResult{
		Bits:         "207fffff",
		CurTime:      0x60000010,
		Height:       tip.Height + 1,
		PreviousHash: "0000000000000000000000000000000000000000000000000000000000000001",
	}}

	builder := NewTemplateBuilder(src, params)
	_, err := builder.Build(context.Background(), tip, testAddress(t, params))
	if err == nil {
		t.Fatal("Build() accepted a template for a different tip")
	}
	if !errors.IsType(err, errors.ErrorTypeChain) {
		t.Errorf("Build() error type = %v, want chain", err)
	}
}

func TestTemplateBuilderBadAddress(t *testing.T) {
	params := chain.RegressionNetParams()
	tip := testTip()

	src := &fakeTemplateSource{result: &btcjson.GetBlockTemplateResult{
		Bits:         "207fffff",
		CurTime:      0x60000010,
		Height:       tip.Height + 1,
		PreviousHash: tip.Hash.String(),
	}}

	builder := NewTemplateBuilder(src, params)
	if _, err := builder.Build(context.Background(), tip, "not-an-address"); err == nil {
		t.Error("Build() accepted a malformed reward address")
	}
}
