package chain

import (
	"context"
	"fmt"
	"log/slog"

	zmq "github.com/pebbe/zmq4"
)

// ZMQ topics published by the node.
const (
	TopicHashBlock = "hashblock"
	TopicHashTx    = "hashtx"
)

// ZMQNotifier receives tip and mempool notifications from the node. The
// staking supervisor uses hashblock events to invalidate jobs on tip change
// and hashtx events to refresh stale templates.
type ZMQNotifier struct {
	socket   *zmq.Socket
	endpoint string
	logger   *slog.Logger
}

// NewZMQNotifier creates a notifier for the node's ZMQ publisher endpoint.
func NewZMQNotifier(endpoint string, logger *slog.Logger) (*ZMQNotifier, error) {
	socket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ socket: %w", err)
	}

	return &ZMQNotifier{
		socket:   socket,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Subscribe subscribes to a specific topic
func (z *ZMQNotifier) Subscribe(topic string) error {
	if err := z.socket.SetSubscribe(topic); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	z.logger.Info("subscribed to ZMQ topic", "topic", topic)
	return nil
}

// Connect connects to the ZMQ endpoint
func (z *ZMQNotifier) Connect() error {
	if err := z.socket.Connect(z.endpoint); err != nil {
		return fmt.Errorf("failed to connect to ZMQ endpoint %s: %w", z.endpoint, err)
	}
	z.logger.Info("connected to ZMQ endpoint", "endpoint", z.endpoint)
	return nil
}

// Listen starts listening for ZMQ messages until the context is cancelled.
func (z *ZMQNotifier) Listen(ctx context.Context, handler func(topic string, data []byte) error) error {
	z.logger.Info("starting ZMQ listener")

	for {
		select {
		case <-ctx.Done():
			z.logger.Info("ZMQ listener stopping")
			return ctx.Err()
		default:
		}

		msg, err := z.socket.RecvMessageBytes(zmq.DONTWAIT)
		if err != nil {
			if err.Error() == "resource temporarily unavailable" {
				continue
			}
			z.logger.Error("failed to receive ZMQ message", "error", err)
			continue
		}

		if len(msg) < 2 {
			z.logger.Warn("received malformed ZMQ message", "parts", len(msg))
			continue
		}

		topic := string(msg[0])
		data := msg[1]

		z.logger.Debug("received ZMQ message", "topic", topic, "size", len(data))

		if err := handler(topic, data); err != nil {
			z.logger.Error("failed to handle ZMQ message", "topic", topic, "error", err)
		}
	}
}

// Close closes the ZMQ socket
func (z *ZMQNotifier) Close() error {
	if z.socket != nil {
		return z.socket.Close()
	}
	return nil
}

// TipEventHandler routes block and mempool notifications to the staking
// supervisor's reactive-invalidation hooks.
type TipEventHandler struct {
	logger    *slog.Logger
	onTip     func(blockHash string) error
	onMempool func(txHash string) error
}

// NewTipEventHandler creates a handler with no hooks attached.
func NewTipEventHandler(logger *slog.Logger) *TipEventHandler {
	return &TipEventHandler{logger: logger}
}

// SetTipHandler sets the hook invoked on a new best block.
func (h *TipEventHandler) SetTipHandler(handler func(blockHash string) error) {
	h.onTip = handler
}

// SetMempoolHandler sets the hook invoked on a new mempool transaction.
func (h *TipEventHandler) SetMempoolHandler(handler func(txHash string) error) {
	h.onMempool = handler
}

// HandleMessage routes a ZMQ message to the attached hooks.
func (h *TipEventHandler) HandleMessage(topic string, data []byte) error {
	switch topic {
	case TopicHashBlock:
		if len(data) != 32 {
			return fmt.Errorf("invalid block hash length: %d", len(data))
		}

		blockHash := reverseHex(data)
		h.logger.Info("new tip notification", "hash", blockHash)

		if h.onTip != nil {
			return h.onTip(blockHash)
		}

	case TopicHashTx:
		if len(data) != 32 {
			return fmt.Errorf("invalid tx hash length: %d", len(data))
		}

		txHash := reverseHex(data)
		h.logger.Debug("new mempool transaction", "hash", txHash)

		if h.onMempool != nil {
			return h.onMempool(txHash)
		}

	default:
		h.logger.Warn("unknown ZMQ topic", "topic", topic)
	}

	return nil
}

// reverseHex reverses bytes and converts to hex string
func reverseHex(data []byte) string {
	reversed := make([]byte, len(data))
	for i := 0; i < len(data); i++ {
		reversed[i] = data[len(data)-1-i]
	}
	return fmt.Sprintf("%x", reversed)
}
