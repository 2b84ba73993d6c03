package mining

import (
	"math/big"
	"testing"

	"github.com/bardlex/gostake/internal/kernel"
)

// maxTarget accepts every hash.
func maxTarget() *big.Int {
	target := new(big.Int).Lsh(big.NewInt(1), 256)
	return target.Sub(target, big.NewInt(1))
}

func TestMineTrivialTarget(t *testing.T) {
	job, _ := newTestJob(t)
	header := job.Header(0x60000010, 0)

	got := Mine(header, maxTarget(), 5, 5+Interval)
	if got != 5 {
		t.Errorf("Mine() = %d, want the lowest nonce 5", got)
	}
}

func TestMineImpossibleTarget(t *testing.T) {
	job, _ := newTestJob(t)
	header := job.Header(0x60000010, 0)

	if got := Mine(header, big.NewInt(0), 0, 64); got != -1 {
		t.Errorf("Mine() = %d, want -1 for an unreachable target", got)
	}
}

func TestMineUpperBoundary(t *testing.T) {
	// The final nonce 2^32-1 terminates the scan without wrapping to zero.
	job, _ := newTestJob(t)
	header := job.Header(0x60000010, 0)

	if got := Mine(header, big.NewInt(0), nonceSpace-16, nonceSpace); got != -1 {
		t.Errorf("Mine() = %d, want -1 at the top of the nonce space", got)
	}
}

func TestMineDoesNotMutateHeader(t *testing.T) {
	job, _ := newTestJob(t)
	header := job.Header(0x60000010, 0)
	orig := string(header)

	Mine(header, maxTarget(), 0, 16)
	if string(header) != orig {
		t.Error("Mine() mutated the caller's header")
	}
}

func TestSearchNonceTrivialTarget(t *testing.T) {
	job, _ := newTestJob(t)

	var statuses int
	nonce, found := SearchNonce(job, 0x60000010, maxTarget(), func(SearchStatus) { statuses++ })

	if !found {
		t.Fatal("SearchNonce() found nothing against an accept-all target")
	}
	if nonce != 0 {
		t.Errorf("SearchNonce() = %d, want the lowest nonce 0", nonce)
	}
	if statuses != 0 {
		t.Errorf("SearchNonce() emitted %d status events on an immediate hit", statuses)
	}
}

func TestSearchNonceRealTarget(t *testing.T) {
	// The template's easy bits leave roughly half of hashes passing,
	// so the hit lands well inside the first slice.
	job, _ := newTestJob(t)
	target := kernel.CompactToTarget(job.Template().Bits())

	nonce, found := SearchNonce(job, 0x60000010, target, nil)
	if !found {
		t.Fatal("SearchNonce() found nothing against easy bits")
	}

	// Lowest-nonce ordering: every earlier nonce must fail.
	header := job.Header(0x60000010, 0)
	if prior := Mine(header, target, 0, uint64(nonce)); prior != -1 {
		t.Errorf("SearchNonce() returned %d but %d already passes", nonce, prior)
	}
}

func TestSearchNonceDestroyedJob(t *testing.T) {
	job, _ := newTestJob(t)
	job.Destroy()

	if _, found := SearchNonce(job, 0x60000010, maxTarget(), nil); found {
		t.Error("SearchNonce() returned a nonce for a destroyed job")
	}
}

func TestWorkerPoolMine(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	job, _ := newTestJob(t)
	header := job.Header(0x60000010, 0)

	if got := <-pool.Mine(header, maxTarget(), 3, 100); got != 3 {
		t.Errorf("pool Mine() = %d, want 3", got)
	}
	if got := <-pool.Mine(header, big.NewInt(0), 0, 64); got != -1 {
		t.Errorf("pool Mine() = %d, want -1 for an unreachable target", got)
	}
}

func TestSearchNoncePoolTrivialTarget(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	job, _ := newTestJob(t)

	nonce, found := SearchNoncePool(pool, job, 0x60000010, maxTarget(), nil)
	if !found {
		t.Fatal("SearchNoncePool() found nothing against an accept-all target")
	}
	if nonce != 0 {
		t.Errorf("SearchNoncePool() = %d, want 0", nonce)
	}
}

func TestSearchNoncePoolDestroyedJob(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	job, _ := newTestJob(t)
	job.Destroy()

	if _, found := SearchNoncePool(pool, job, 0x60000010, maxTarget(), nil); found {
		t.Error("SearchNoncePool() returned a nonce for a destroyed job")
	}
}
