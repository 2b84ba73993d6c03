package kernel

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/bardlex/gostake/internal/chain"
)

// easyBits encodes a target near the top of the 256-bit space, so any hash
// quotient passes.
const easyBits = uint32(0x207fffff)

// hardBits encodes a tiny target no realistic hash quotient reaches.
const hardBits = uint32(0x03000001)

func testParams() *chain.Params {
	return chain.MainNetParams()
}

func testTip() *chain.TipSnapshot {
	tip := &chain.TipSnapshot{
		Height: 10000,
		Time:   0x60000000,
		Bits:   easyBits,
	}
	for i := range tip.StakeModifier {
		tip.StakeModifier[i] = 0xAA
	}
	return tip
}

func testCoin(value int64, height int64) *chain.Coin {
	coin := &chain.Coin{
		Index:  1,
		Value:  value,
		Height: height,
		Time:   0x5f000000,
	}
	coin.Hash[0] = 0x42
	return coin
}

func TestCheckDeterminism(t *testing.T) {
	params := testParams()
	tip := testTip()
	coin := testCoin(1000, 100)
	prevOut := coin.OutPoint()

	firstOK, firstHash := Check(params, tip, easyBits, coin, prevOut, 0x60000010)

	for i := 0; i < 50; i++ {
		ok, hash := Check(params, tip, easyBits, coin, prevOut, 0x60000010)
		if ok != firstOK {
			t.Fatalf("Check() verdict changed on call %d: got %v, want %v", i, ok, firstOK)
		}
		if hash != firstHash {
			t.Fatalf("Check() kernel hash changed on call %d", i)
		}
	}
}

func TestCheckPassesEasyTarget(t *testing.T) {
	params := testParams()
	tip := testTip()
	coin := testCoin(1000, 100)

	ok, hash := Check(params, tip, easyBits, coin, coin.OutPoint(), 0x60000010)
	if !ok {
		t.Error("Check() = false against a near-maximum target")
	}
	var zero chainhash.Hash
	if hash == zero {
		t.Error("Check() returned zero kernel hash on success")
	}
}

func TestCheckFailsHardTarget(t *testing.T) {
	params := testParams()
	tip := testTip()
	coin := testCoin(1000, 100)

	if ok, _ := Check(params, tip, hardBits, coin, coin.OutPoint(), 0x60000010); ok {
		t.Error("Check() = true against a near-zero target")
	}
}

func TestCheckProportionality(t *testing.T) {
	// A coin of greater value produces a smaller-or-equal quotient with all
	// other inputs fixed, so success at value v implies success at k*v.
	params := testParams()
	tip := testTip()

	bitsTable := []uint32{easyBits, 0x1d00ffff, 0x1b00ffff, 0x180fffff}
	multipliers := []int64{1, 2, 3, 10, 1000}

	for _, bits := range bitsTable {
		for baseValue := int64(1); baseValue <= 64; baseValue++ {
			for timeTx := uint32(0x60000000); timeTx < 0x60000000+8; timeTx++ {
				base := testCoin(baseValue, 100)
				ok, _ := Check(params, tip, bits, base, base.OutPoint(), timeTx)
				if !ok {
					continue
				}

				for _, k := range multipliers {
					bigger := testCoin(baseValue*k, 100)
					if biggerOK, _ := Check(params, tip, bits, bigger, bigger.OutPoint(), timeTx); !biggerOK {
						t.Fatalf("Check() failed for value %d after passing for %d (bits %08x, timeTx %08x)",
							baseValue*k, baseValue, bits, timeTx)
					}
				}
			}
		}
	}
}

func TestCheckConfirmationGate(t *testing.T) {
	params := testParams()
	tip := testTip()

	tests := []struct {
		name       string
		coinHeight int64
		want       bool
	}{
		{"far past minimum", tip.Height - 2*params.StakeMinConfirmations, true},
		{"exactly at minimum", tip.Height + 1 - params.StakeMinConfirmations, true},
		{"one short", tip.Height + 2 - params.StakeMinConfirmations, false},
		{"tip itself", tip.Height, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coin := testCoin(1000, tt.coinHeight)
			ok, _ := Check(params, tip, easyBits, coin, coin.OutPoint(), 0x60000010)
			if ok != tt.want {
				t.Errorf("Check() = %v, want %v for coin height %d", ok, tt.want, tt.coinHeight)
			}
		})
	}
}

func TestCheckZeroValue(t *testing.T) {
	params := testParams()
	tip := testTip()
	coin := testCoin(0, 100)

	if ok, _ := Check(params, tip, easyBits, coin, coin.OutPoint(), 0x60000010); ok {
		t.Error("Check() = true for a zero-value coin")
	}
}

func TestCheckNilCoin(t *testing.T) {
	params := testParams()
	tip := testTip()

	if ok, _ := Check(params, tip, easyBits, nil, wire.OutPoint{}, 0x60000010); ok {
		t.Error("Check() = true for a missing coin")
	}
}

func TestNextStakeModifier(t *testing.T) {
	var kernelHash chainhash.Hash
	for i := range kernelHash {
		kernelHash[i] = byte(i)
	}
	var prev [32]byte
	for i := range prev {
		prev[i] = 0xAA
	}

	got := NextStakeModifier(kernelHash, prev)

	// The modifier is hash256(kernelHash || prev) in that byte order.
	preimage := append(append([]byte{}, kernelHash[:]...), prev[:]...)
	want := chainhash.DoubleHashB(preimage)
	if string(got[:]) != string(want) {
		t.Errorf("NextStakeModifier() = %x, want %x", got, want)
	}

	// Pure function of its two inputs.
	again := NextStakeModifier(kernelHash, prev)
	if got != again {
		t.Error("NextStakeModifier() is not deterministic")
	}

	// Order matters: swapping the inputs changes the result.
	var swapped chainhash.Hash
	copy(swapped[:], prev[:])
	var prevAsModifier [32]byte
	copy(prevAsModifier[:], kernelHash[:])
	if NextStakeModifier(swapped, prevAsModifier) == got {
		t.Error("NextStakeModifier() ignored input order")
	}
}

func TestCompactFromValue(t *testing.T) {
	// Values that fit the 24-bit mantissa round-trip exactly.
	for _, value := range []int64{1, 100, 0x7fffff} {
		target := CompactToTarget(CompactFromValue(value))
		if target.Int64() != value {
			t.Errorf("CompactToTarget(CompactFromValue(%d)) = %v", value, target)
		}
	}

	// Larger values are truncated but never enlarged.
	big := int64(0x123456789a)
	target := CompactToTarget(CompactFromValue(big))
	if target.Int64() > big {
		t.Errorf("compact encoding enlarged %d to %v", big, target)
	}
	if target.Sign() <= 0 {
		t.Errorf("compact encoding of %d collapsed to %v", big, target)
	}
}
