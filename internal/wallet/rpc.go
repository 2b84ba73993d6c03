package wallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/circuit"
	"github.com/bardlex/gostake/pkg/errors"
	"github.com/bardlex/gostake/pkg/retry"
)

// confHeader caches the height and time of a confirming block during one
// coin enumeration.
type confHeader struct {
	height int64
	time   uint32
}

// RPCWallet serves the Wallet contract from the node's built-in wallet over
// JSON-RPC.
type RPCWallet struct {
	client         *rpcclient.Client
	params         *chain.Params
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
}

// NewRPCWallet creates a wallet client for the node at host:port.
func NewRPCWallet(host string, port int, username, password string, params *chain.Params) (*RPCWallet, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         fmt.Sprintf("%s:%d", host, port),
		User:         username,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeWallet, "wallet_client_creation",
			"failed to create wallet RPC client")
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	}

	return &RPCWallet{
		client:         client,
		params:         params,
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.NetworkConfig(),
	}, nil
}

// Close gracefully shuts down the wallet client.
func (w *RPCWallet) Close() {
	w.client.Shutdown()
}

// CoinsOfAccount enumerates the spendable coins of the staking account in
// deterministic (txid, vout) ascending order. Height and timestamp of the
// confirming block are resolved per coin, with headers cached per block.
func (w *RPCWallet) CoinsOfAccount(ctx context.Context, account string) ([]*chain.Coin, error) {
	return circuit.ExecuteWithResult(ctx, w.circuitBreaker, func() ([]*chain.Coin, error) {
		return retry.DoWithResult(ctx, w.retryConfig, func() ([]*chain.Coin, error) {
			unspent, err := w.client.ListUnspentAsync().Receive()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeWallet, "list_unspent",
					"failed to enumerate spendable outputs")
			}

			headers := make(map[string]confHeader)
			coins := make([]*chain.Coin, 0, len(unspent))

			for _, u := range unspent {
				if account != "" && u.Account != account {
					continue
				}
				if !u.Spendable || u.Confirmations < 1 {
					continue
				}

				txHash, err := chainhash.NewHashFromStr(u.TxID)
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeWallet, "list_unspent",
						"unspent output carries malformed txid").
						WithContext("txid", u.TxID)
				}

				script, err := hex.DecodeString(u.ScriptPubKey)
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeWallet, "list_unspent",
						"unspent output carries malformed script").
						WithContext("txid", u.TxID)
				}

				info, err := w.confirmingHeader(txHash, headers)
				if err != nil {
					return nil, err
				}

				amount, err := btcutil.NewAmount(u.Amount)
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeWallet, "list_unspent",
						"unspent output carries malformed amount")
				}

				coins = append(coins, &chain.Coin{
					Hash:   *txHash,
					Index:  u.Vout,
					Value:  int64(amount),
					Height: info.height,
					Time:   info.time,
					Script: script,
				})
			}

			SortCoins(coins)
			return coins, nil
		})
	})
}

// confirmingHeader resolves the height and time of the block that confirmed
// a transaction.
func (w *RPCWallet) confirmingHeader(txHash *chainhash.Hash, cache map[string]confHeader) (confHeader, error) {
	var zero confHeader

	txInfo, err := w.client.GetTransactionAsync(txHash).Receive()
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypeWallet, "get_transaction",
			"failed to resolve confirming block").
			WithContext("txid", txHash.String())
	}
	if txInfo.BlockHash == "" {
		return zero, errors.New(errors.ErrorTypeWallet, "get_transaction",
			"transaction is unconfirmed").
			WithContext("txid", txHash.String())
	}

	if cached, ok := cache[txInfo.BlockHash]; ok {
		return cached, nil
	}

	blockHash, err := chainhash.NewHashFromStr(txInfo.BlockHash)
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypeWallet, "get_transaction",
			"confirming block hash is malformed")
	}

	header, err := w.client.GetBlockHeaderVerboseAsync(blockHash).Receive()
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypeWallet, "get_block_header",
			"failed to fetch confirming block header").
			WithContext("block_hash", txInfo.BlockHash)
	}

	info := confHeader{height: int64(header.Height), time: uint32(header.Time)}
	cache[txInfo.BlockHash] = info
	return info, nil
}

// PrivateKey fetches the key for an address via dumpprivkey. The boolean
// reports whether the key's public form is compressed.
func (w *RPCWallet) PrivateKey(ctx context.Context, address string) (*btcec.PrivateKey, bool, error) {
	addr, err := btcutil.DecodeAddress(address, w.params.Net)
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrorTypeWallet, "private_key",
			"address does not parse").
			WithContext("address", address)
	}

	wif, err := circuit.ExecuteWithResult(ctx, w.circuitBreaker, func() (*btcutil.WIF, error) {
		return retry.DoWithResult(ctx, w.retryConfig, func() (*btcutil.WIF, error) {
			wif, err := w.client.DumpPrivKeyAsync(addr).Receive()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeWallet, "dump_priv_key",
					"failed to fetch private key").
					WithContext("address", address)
			}
			return wif, nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	return wif.PrivKey, wif.CompressPubKey, nil
}

// SignCoinstake resolves the key behind the coin's locking script and signs
// the coinstake input in place.
func (w *RPCWallet) SignCoinstake(ctx context.Context, tx *wire.MsgTx, coin *chain.Coin) error {
	address, err := AddressForScript(coin.Script, w.params.Net)
	if err != nil {
		return err
	}

	priv, compressed, err := w.PrivateKey(ctx, address)
	if err != nil {
		return err
	}

	return SignCoinstakeWithKey(tx, coin, priv, compressed)
}

// SortCoins orders coins by (txid, vout) ascending, the deterministic order
// the stake searcher walks them in.
func SortCoins(coins []*chain.Coin) {
	sort.Slice(coins, func(i, j int) bool {
		cmp := compareHashes(coins[i].Hash, coins[j].Hash)
		if cmp != 0 {
			return cmp < 0
		}
		return coins[i].Index < coins[j].Index
	})
}

// compareHashes orders hashes by their canonical (big-endian display) form.
func compareHashes(a, b chainhash.Hash) int {
	for i := chainhash.HashSize - 1; i >= 0; i-- {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

var _ Wallet = (*RPCWallet)(nil)
