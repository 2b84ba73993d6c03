package mining

import (
	"encoding/binary"
	"math/big"
)

// Interval is the nonce-slice width: the 32-bit space split into 1500 slices.
const Interval = uint64(0xffffffff) / 1500

// nonceSpace is one past the largest 32-bit nonce.
const nonceSpace = uint64(1) << 32

// nonceOffset is where the nonce sits in the 80-byte header.
const nonceOffset = 76

// Mine scans nonces in [min, max) for one whose header hash meets the
// target, returning the lowest winning nonce or -1. The header's version
// field selects the hash rule. Pure and allocation-light; safe to run on a
// pool worker.
func Mine(header []byte, target *big.Int, min, max uint64) int64 {
	work := make([]byte, len(header))
	copy(work, header)

	version := int32(binary.LittleEndian.Uint32(work[0:4]))

	for nonce := min; nonce < max; nonce++ {
		binary.LittleEndian.PutUint32(work[nonceOffset:nonceOffset+4], uint32(nonce))
		if HashMeetsTarget(HashForVersion(version, work), target) {
			return int64(nonce)
		}
	}
	return -1
}

// SearchStatus is the periodic progress report a nonce search emits after
// each exhausted slice.
type SearchStatus struct {
	Nonce  uint32
	Hashes *big.Int
	Rate   float64
}

// SearchNonce walks the 32-bit nonce space in ascending Interval-wide slices
// until a nonce satisfies the target, the space is exhausted, or the job is
// destroyed. Between slices it checks for destruction and reports status.
func SearchNonce(job *Job, ts uint32, target *big.Int, status func(SearchStatus)) (uint32, bool) {
	header := job.Header(ts, 0)

	for min := uint64(0); min < nonceSpace; {
		if job.Destroyed() {
			return 0, false
		}

		max := min + Interval
		if max > nonceSpace {
			max = nonceSpace
		}

		if n := Mine(header, target, min, max); n >= 0 {
			return uint32(n), true
		}

		if status != nil {
			last := uint32(max - 1)
			status(SearchStatus{Nonce: last, Hashes: job.Hashes(last), Rate: job.Rate(last)})
		}
		min = max
	}

	return 0, false
}

// SearchNoncePool is SearchNonce with each slice offloaded to the worker
// pool. The wait for a slice result is a suspension point: destruction is
// observed before the next slice is dispatched.
func SearchNoncePool(pool *WorkerPool, job *Job, ts uint32, target *big.Int, status func(SearchStatus)) (uint32, bool) {
	header := job.Header(ts, 0)

	for min := uint64(0); min < nonceSpace; {
		if job.Destroyed() {
			return 0, false
		}

		max := min + Interval
		if max > nonceSpace {
			max = nonceSpace
		}

		if n := <-pool.Mine(header, target, min, max); n >= 0 {
			return uint32(n), true
		}

		if status != nil {
			last := uint32(max - 1)
			status(SearchStatus{Nonce: last, Hashes: job.Hashes(last), Rate: job.Rate(last)})
		}
		min = max
	}

	return 0, false
}
