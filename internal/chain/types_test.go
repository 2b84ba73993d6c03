package chain

import (
	stderrors "errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bardlex/gostake/pkg/errors"
)

func TestCoinConfirmations(t *testing.T) {
	coin := &Coin{Height: 100}

	tests := []struct {
		name      string
		tipHeight int64
		want      int64
	}{
		{"confirmed by the tip", 100, 1},
		{"ten deep", 109, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coin.Confirmations(tt.tipHeight); got != tt.want {
				t.Errorf("Confirmations(%d) = %d, want %d", tt.tipHeight, got, tt.want)
			}
		})
	}
}

func TestCoinOutPoint(t *testing.T) {
	coin := &Coin{Index: 3}
	coin.Hash[0] = 0x42

	op := coin.OutPoint()
	if op.Hash != coin.Hash || op.Index != 3 {
		t.Errorf("OutPoint() = %v, want %s:3", op, coin.Hash)
	}
}

func TestClassifySubmitError(t *testing.T) {
	var hash chainhash.Hash

	tests := []struct {
		name    string
		message string
		race    bool
		verify  bool
	}{
		{"sibling race", "block rejected: bad-prevblk", true, false},
		{"inconclusive", "submission inconclusive", true, false},
		{"consensus rejection", "rejected: bad-coinstake", false, true},
		{"invalid block", "invalid block found", false, true},
		{"transport fault", "connection refused", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifySubmitError(stderrors.New(tt.message), hash)

			if got := errors.IsRace(err); got != tt.race {
				t.Errorf("race classification = %v, want %v", got, tt.race)
			}
			if got := errors.IsVerify(err); got != tt.verify {
				t.Errorf("verify classification = %v, want %v", got, tt.verify)
			}
		})
	}
}

func TestParseCompact(t *testing.T) {
	bits, err := parseCompact("1d00ffff")
	if err != nil {
		t.Fatalf("parseCompact() unexpected error: %v", err)
	}
	if bits != 0x1d00ffff {
		t.Errorf("parseCompact() = %08x, want 1d00ffff", bits)
	}

	if _, err := parseCompact("not-hex"); err == nil {
		t.Error("parseCompact() accepted malformed bits")
	}
}
