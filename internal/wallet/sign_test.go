package wallet

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
)

func testKey() (*btcec.PrivateKey, *btcec.PublicKey) {
	return btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x02}, 32))
}

func p2pkhScript(t *testing.T, params *chain.Params) []byte {
	t.Helper()
	_, pub := testKey()
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params.Net)
	if err != nil {
		t.Fatalf("failed to build address: %v", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		t.Fatalf("failed to build script: %v", err)
	}
	return script
}

func TestSignBlockHashVerifies(t *testing.T) {
	priv, pub := testKey()

	var hash chainhash.Hash
	hash[0] = 0x55

	sig := SignBlockHash(hash, priv)
	if len(sig) == 0 {
		t.Fatal("SignBlockHash() returned an empty signature")
	}

	if !VerifyBlockSignature(hash, sig, pub) {
		t.Error("VerifyBlockSignature() rejected a valid signature")
	}

	var other chainhash.Hash
	other[0] = 0x56
	if VerifyBlockSignature(other, sig, pub) {
		t.Error("VerifyBlockSignature() accepted a signature over a different hash")
	}

	if VerifyBlockSignature(hash, []byte{0x01, 0x02}, pub) {
		t.Error("VerifyBlockSignature() accepted garbage")
	}
}

func TestSignBlockHashDeterministic(t *testing.T) {
	priv, _ := testKey()

	var hash chainhash.Hash
	hash[0] = 0x55

	first := SignBlockHash(hash, priv)
	second := SignBlockHash(hash, priv)
	if !bytes.Equal(first, second) {
		t.Error("SignBlockHash() is not deterministic (RFC 6979)")
	}
}

func TestSignCoinstakeWithKey(t *testing.T) {
	params := chain.RegressionNetParams()
	priv, _ := testKey()

	coin := &chain.Coin{
		Index:  0,
		Value:  100,
		Script: p2pkhScript(t, params),
	}
	coin.Hash[0] = 0x42

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: coin.OutPoint(), Sequence: 0xffffffff})
	tx.AddTxOut(&wire.TxOut{Value: 0})
	tx.AddTxOut(&wire.TxOut{Value: 150, PkScript: coin.Script})

	if err := SignCoinstakeWithKey(tx, coin, priv, true); err != nil {
		t.Fatalf("SignCoinstakeWithKey() unexpected error: %v", err)
	}
	if len(tx.TxIn[0].SignatureScript) == 0 {
		t.Fatal("SignCoinstakeWithKey() left the input unsigned")
	}

	// The signature script must execute against the locking script.
	fetcher := txscript.NewCannedPrevOutputFetcher(coin.Script, coin.Value)
	engine, err := txscript.NewEngine(coin.Script, tx, 0, txscript.StandardVerifyFlags, nil, nil, coin.Value, fetcher)
	if err != nil {
		t.Fatalf("failed to create script engine: %v", err)
	}
	if err := engine.Execute(); err != nil {
		t.Errorf("coinstake signature does not satisfy the locking script: %v", err)
	}
}

func TestAddressForScript(t *testing.T) {
	params := chain.RegressionNetParams()
	script := p2pkhScript(t, params)

	address, err := AddressForScript(script, params.Net)
	if err != nil {
		t.Fatalf("AddressForScript() unexpected error: %v", err)
	}

	addr, err := btcutil.DecodeAddress(address, params.Net)
	if err != nil {
		t.Fatalf("extracted address does not parse: %v", err)
	}

	roundTrip, err := txscript.PayToAddrScript(addr)
	if err != nil {
		t.Fatalf("failed to rebuild script: %v", err)
	}
	if !bytes.Equal(roundTrip, script) {
		t.Error("AddressForScript() did not round-trip the locking script")
	}

	if _, err := AddressForScript([]byte{txscript.OP_RETURN}, params.Net); err == nil {
		t.Error("AddressForScript() accepted a script with no address")
	}
}
