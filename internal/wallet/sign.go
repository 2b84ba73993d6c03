package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/errors"
)

// SignCoinstakeWithKey signs input 0 of a coinstake spending the given coin.
func SignCoinstakeWithKey(tx *wire.MsgTx, coin *chain.Coin, priv *btcec.PrivateKey, compressed bool) error {
	sigScript, err := txscript.SignatureScript(tx, 0, coin.Script, txscript.SigHashAll, priv, compressed)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWallet, "sign_coinstake",
			"failed to build coinstake signature script")
	}
	tx.TxIn[0].SignatureScript = sigScript
	return nil
}

// SignBlockHash produces the canonical DER signature over a block's identity
// hash. The serialization is low-S, so the signature is canonical by
// construction.
func SignBlockHash(hash chainhash.Hash, priv *btcec.PrivateKey) []byte {
	return ecdsa.Sign(priv, hash[:]).Serialize()
}

// VerifyBlockSignature checks a block signature against a public key.
func VerifyBlockSignature(hash chainhash.Hash, sig []byte, pub *btcec.PublicKey) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash[:], pub)
}
