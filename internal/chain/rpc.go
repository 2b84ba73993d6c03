package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/pkg/circuit"
	"github.com/bardlex/gostake/pkg/errors"
	"github.com/bardlex/gostake/pkg/retry"
)

// RPCClient talks to the staking node over JSON-RPC. It wraps btcd's RPC
// client with the tip/coin/submit operations the staking core needs plus
// circuit breaking and retries on the network path.
type RPCClient struct {
	client         *rpcclient.Client
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
}

// NewRPCClient creates an RPC client for the node at host:port. The client
// uses HTTP POST mode without TLS, the usual arrangement for a local node.
func NewRPCClient(host string, port int, username, password string) (*RPCClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         fmt.Sprintf("%s:%d", host, port),
		User:         username,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeChain, "rpc_client_creation",
			"failed to create chain RPC client").
			WithContext("host", host).
			WithContext("port", port)
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	}

	return &RPCClient{
		client:         client,
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.NetworkConfig(),
	}, nil
}

// Close gracefully shuts down the RPC client.
func (c *RPCClient) Close() {
	c.client.Shutdown()
}

// Ping tests connectivity to the node.
func (c *RPCClient) Ping(ctx context.Context) error {
	return c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			if err := c.client.PingAsync().Receive(); err != nil {
				return errors.Wrap(err, errors.ErrorTypeNetwork, "ping",
					"chain node connectivity check failed")
			}
			return nil
		})
	})
}

// Tip returns a snapshot of the current best block, including its stake
// modifier.
func (c *RPCClient) Tip(ctx context.Context) (*TipSnapshot, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*TipSnapshot, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*TipSnapshot, error) {
			best, err := c.client.GetBestBlockHashAsync().Receive()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "get_best_block_hash",
					"failed to retrieve best block hash")
			}

			header, err := c.client.GetBlockHeaderVerboseAsync(best).Receive()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "get_block_header",
					"failed to retrieve tip header").
					WithContext("block_hash", best.String())
			}

			bits, err := parseCompact(header.Bits)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "parse_bits",
					"tip header carries malformed bits").
					WithContext("bits", header.Bits)
			}

			prev, err := chainhash.NewHashFromStr(header.PreviousHash)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "parse_prev_hash",
					"tip header carries malformed previous hash")
			}

			modifier, err := c.stakeModifier(best)
			if err != nil {
				return nil, err
			}

			return &TipSnapshot{
				Height:        int64(header.Height),
				Hash:          *best,
				PrevBlock:     *prev,
				Time:          uint32(header.Time),
				Bits:          bits,
				StakeModifier: modifier,
			}, nil
		})
	})
}

// stakeModifier fetches the 32-byte stake modifier recorded for a block. The
// node exposes it through the getstakemodifier RPC added by the PoS fork.
func (c *RPCClient) stakeModifier(hash *chainhash.Hash) ([32]byte, error) {
	var modifier [32]byte

	param, err := json.Marshal(hash.String())
	if err != nil {
		return modifier, errors.Wrap(err, errors.ErrorTypeInternal, "marshal_param",
			"failed to marshal getstakemodifier parameter")
	}

	raw, err := c.client.RawRequestAsync("getstakemodifier", []json.RawMessage{param}).Receive()
	if err != nil {
		return modifier, errors.Wrap(err, errors.ErrorTypeChain, "get_stake_modifier",
			"failed to retrieve stake modifier").
			WithContext("block_hash", hash.String())
	}

	var modifierHex string
	if err := json.Unmarshal(raw, &modifierHex); err != nil {
		return modifier, errors.Wrap(err, errors.ErrorTypeChain, "get_stake_modifier",
			"malformed getstakemodifier reply")
	}

	decoded, err := hex.DecodeString(modifierHex)
	if err != nil || len(decoded) != 32 {
		return modifier, errors.New(errors.ErrorTypeChain, "get_stake_modifier",
			"stake modifier is not 32 bytes").
			WithContext("modifier", modifierHex)
	}

	copy(modifier[:], decoded)
	return modifier, nil
}

// Add submits a serialized block. A nil entry with nil error means a sibling
// block was accepted first (bad-prevblk); a verify-typed error means the
// block was rejected by consensus.
func (c *RPCClient) Add(ctx context.Context, blockHex string, hash chainhash.Hash) (*Entry, error) {
	if _, err := hex.DecodeString(blockHex); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeVerify, "block_validation",
			"invalid block hex encoding").
			WithContext("block_hex_length", len(blockHex))
	}

	submitErr := c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, retry.SubmitConfig(), func() error {
			param, err := json.Marshal(blockHex)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "marshal_param",
					"failed to marshal submitblock parameter")
			}
			_, err = c.client.RawRequestAsync("submitblock", []json.RawMessage{param}).Receive()
			if err != nil {
				return classifySubmitError(err, hash)
			}
			return nil
		})
	})

	if submitErr != nil {
		if errors.IsRace(submitErr) {
			return nil, nil
		}
		return nil, submitErr
	}

	height, err := c.client.GetBlockCountAsync().Receive()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeChain, "get_block_count",
			"block accepted but height query failed").
			WithContext("block_hash", hash.String())
	}

	return &Entry{Height: height, Hash: hash}, nil
}

// classifySubmitError sorts a submitblock failure into a lost race, a
// consensus rejection, or a transport fault.
func classifySubmitError(err error, hash chainhash.Hash) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "bad-prevblk"), strings.Contains(msg, "inconclusive"):
		return errors.Wrap(err, errors.ErrorTypeRace, "submit_block",
			"sibling block accepted first").
			WithContext("block_hash", hash.String())
	case strings.Contains(msg, "rejected"), strings.Contains(msg, "bad-"),
		strings.Contains(msg, "invalid"), strings.Contains(msg, "duplicate"),
		strings.Contains(msg, "stake"):
		return errors.Wrap(err, errors.ErrorTypeVerify, "submit_block",
			"block rejected by consensus").
			WithContext("block_hash", hash.String())
	default:
		return errors.Wrap(err, errors.ErrorTypeChain, "submit_block",
			"failed to submit block").
			WithContext("block_hash", hash.String())
	}
}

// GetCoins fetches the funding transaction behind a coin, with the height and
// timestamp of its confirming block.
func (c *RPCClient) GetCoins(ctx context.Context, hash *chainhash.Hash) (*PrevTx, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*PrevTx, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*PrevTx, error) {
			verbose, err := c.client.GetRawTransactionVerboseAsync(hash).Receive()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "get_raw_transaction",
					"failed to retrieve funding transaction").
					WithContext("tx_hash", hash.String())
			}

			txBytes, err := hex.DecodeString(verbose.Hex)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "decode_transaction",
					"funding transaction hex is malformed")
			}

			tx := &wire.MsgTx{}
			if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "decode_transaction",
					"failed to deserialize funding transaction")
			}

			prev := &PrevTx{Hash: *hash, Outputs: tx.TxOut}

			if verbose.BlockHash != "" {
				blockHash, err := chainhash.NewHashFromStr(verbose.BlockHash)
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeChain, "parse_block_hash",
						"funding transaction carries malformed block hash")
				}
				header, err := c.client.GetBlockHeaderVerboseAsync(blockHash).Receive()
				if err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeChain, "get_block_header",
						"failed to retrieve confirming block header").
						WithContext("block_hash", verbose.BlockHash)
				}
				prev.Height = int64(header.Height)
				prev.Time = uint32(header.Time)
			}

			return prev, nil
		})
	})
}

// GetBlockTemplate retrieves a raw block template for the template builder.
func (c *RPCClient) GetBlockTemplate(ctx context.Context) (*btcjson.GetBlockTemplateResult, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*btcjson.GetBlockTemplateResult, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*btcjson.GetBlockTemplateResult, error) {
			req := &btcjson.TemplateRequest{
				Mode:         "template",
				Capabilities: []string{"coinbasetxn", "workid", "coinbase/append"},
			}

			template, err := c.client.GetBlockTemplateAsync(req).Receive()
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeChain, "get_block_template",
					"failed to retrieve block template")
			}

			return template, nil
		})
	})
}

// ValidateAddress checks whether an address parses for the given network.
func (c *RPCClient) ValidateAddress(address string, params *Params) bool {
	_, err := btcutil.DecodeAddress(address, params.Net)
	return err == nil
}

// parseCompact decodes a hex-encoded compact difficulty value.
func parseCompact(bits string) (uint32, error) {
	v, err := strconv.ParseUint(bits, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
