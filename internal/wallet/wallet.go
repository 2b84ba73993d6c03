// Package wallet provides the staking core's view of the wallet: coin
// enumeration for the staking account, key lookup, and the signatures a stake
// block needs.
package wallet

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/errors"
)

// Wallet is the contract the stake searcher requires. Enumeration is
// read-mostly on the hot path; mutation happens only outside the staking
// loop.
type Wallet interface {
	// CoinsOfAccount enumerates the spendable coins of the staking account.
	CoinsOfAccount(ctx context.Context, account string) ([]*chain.Coin, error)

	// PrivateKey returns the key authoritative for an address.
	PrivateKey(ctx context.Context, address string) (*btcec.PrivateKey, bool, error)

	// SignCoinstake signs the coinstake input that spends the given coin,
	// mutating the transaction in place.
	SignCoinstake(ctx context.Context, tx *wire.MsgTx, coin *chain.Coin) error
}

// AddressForScript extracts the single address a locking script pays to.
func AddressForScript(script []byte, net *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, net)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeWallet, "extract_address",
			"locking script does not parse")
	}
	if len(addrs) != 1 {
		return "", errors.New(errors.ErrorTypeWallet, "extract_address",
			"locking script does not pay a single address").
			WithContext("addresses", len(addrs))
	}
	return addrs[0].EncodeAddress(), nil
}
