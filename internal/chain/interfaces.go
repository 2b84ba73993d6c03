package chain

import (
	"context"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Chain is the contract the staking core requires of its chain. Add returns
// the accepted entry, a nil entry with nil error when a sibling block won the
// race (bad-prevblk), or an error of type verify when consensus rejected the
// block outright.
type Chain interface {
	// Tip returns a snapshot of the current best block.
	Tip(ctx context.Context) (*TipSnapshot, error)

	// Add submits a serialized block for acceptance.
	Add(ctx context.Context, blockHex string, hash chainhash.Hash) (*Entry, error)

	// GetCoins fetches the funding transaction behind a coin.
	GetCoins(ctx context.Context, hash *chainhash.Hash) (*PrevTx, error)
}

// TemplateSource supplies raw block templates for the template builder.
type TemplateSource interface {
	GetBlockTemplate(ctx context.Context) (*btcjson.GetBlockTemplateResult, error)
}

// Notifier delivers chain events. Handlers run on the notifier's goroutine
// and must return quickly.
type Notifier interface {
	Subscribe(topic string) error
	Connect() error
	Listen(ctx context.Context, handler func(topic string, data []byte) error) error
	Close() error
}

// Compile-time interface compliance checks
var (
	_ Chain          = (*RPCClient)(nil)
	_ TemplateSource = (*RPCClient)(nil)
	_ Notifier       = (*ZMQNotifier)(nil)
)
