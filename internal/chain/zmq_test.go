package chain

import (
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestTipEventHandlerRoutesTopics(t *testing.T) {
	handler := NewTipEventHandler(discardLogger())

	var tips, txs []string
	handler.SetTipHandler(func(hash string) error {
		tips = append(tips, hash)
		return nil
	})
	handler.SetMempoolHandler(func(hash string) error {
		txs = append(txs, hash)
		return nil
	})

	hash := make([]byte, 32)
	hash[0] = 0xab // least significant byte in wire order

	if err := handler.HandleMessage(TopicHashBlock, hash); err != nil {
		t.Fatalf("HandleMessage(hashblock) unexpected error: %v", err)
	}
	if err := handler.HandleMessage(TopicHashTx, hash); err != nil {
		t.Fatalf("HandleMessage(hashtx) unexpected error: %v", err)
	}

	if len(tips) != 1 || len(txs) != 1 {
		t.Fatalf("handler routed %d tips and %d txs, want 1 and 1", len(tips), len(txs))
	}

	// Display order reverses the wire bytes.
	want := "00000000000000000000000000000000000000000000000000000000000000ab"
	if tips[0] != want {
		t.Errorf("tip hash = %s, want %s", tips[0], want)
	}

	// Unknown topics are ignored, malformed hashes are errors.
	if err := handler.HandleMessage("rawblock", []byte{0x01}); err != nil {
		t.Errorf("HandleMessage(unknown topic) unexpected error: %v", err)
	}
	if err := handler.HandleMessage(TopicHashBlock, []byte{0x01}); err == nil {
		t.Error("HandleMessage() accepted a short block hash")
	}
}

func TestTipEventHandlerNoHooks(t *testing.T) {
	handler := NewTipEventHandler(discardLogger())

	hash := make([]byte, 32)
	if err := handler.HandleMessage(TopicHashBlock, hash); err != nil {
		t.Errorf("HandleMessage() without hooks unexpected error: %v", err)
	}
}
