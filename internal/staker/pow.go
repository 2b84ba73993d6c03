package staker

import (
	"math/big"

	"github.com/bardlex/gostake/internal/kernel"
	"github.com/bardlex/gostake/internal/mining"
)

// searchWork runs the proof-of-work path: slice the nonce space against the
// template's bits, rolling the extra-nonce pair whenever the space is
// exhausted, until a nonce hits or the job is destroyed.
func (s *Staker) searchWork(job *mining.Job) (*mining.Block, error) {
	tmpl := job.Template()
	target := kernel.CompactToTarget(tmpl.Bits())
	ts := tmpl.Timestamp()

	status := func(st mining.SearchStatus) {
		hashes, _ := new(big.Float).SetInt(st.Hashes).Float64()
		s.logger.LogSearchStatus(hashes, st.Rate, s.clock.Now().Sub(job.Start()).Seconds())
		s.emitter.EmitStatus(st)
	}

	for !job.Destroyed() {
		var (
			nonce uint32
			found bool
		)
		if s.pool != nil {
			nonce, found = mining.SearchNoncePool(s.pool, job, ts, target, status)
		} else {
			nonce, found = mining.SearchNonce(job, ts, target, status)
		}

		if found {
			return job.Commit(ts, nonce)
		}
		if job.Destroyed() {
			return nil, nil
		}

		// Nonce space exhausted: roll the extra nonce for a fresh header
		// space and search again.
		job.UpdateNonce()
	}

	return nil, nil
}
