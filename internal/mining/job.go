package mining

import (
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/pkg/errors"
)

// Clock abstracts wall-clock reads so searches and staleness rules are
// testable with virtual time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time { return time.Now() }

// Job is one live attempt at solving a template. It owns the extra-nonce
// counters and the one-shot destroyed/committed flags; commit after destroy
// yields no block, and a second destroy is a programming error.
type Job struct {
	mu    sync.Mutex
	tmpl  *Template
	clock Clock
	start time.Time

	n1, n2    uint32
	destroyed bool
	committed bool
}

// NewJob wraps a template in a job handle.
func NewJob(tmpl *Template, clock Clock) *Job {
	if clock == nil {
		clock = RealClock{}
	}
	return &Job{
		tmpl:  tmpl,
		clock: clock,
		start: clock.Now(),
	}
}

// Template exposes the underlying draft.
func (j *Job) Template() *Template { return j.tmpl }

// PrevBlock returns the tip hash the job's attempt builds on.
func (j *Job) PrevBlock() chainhash.Hash { return j.tmpl.PrevBlock() }

// Start returns when the job was created; the supervisor's stale-mempool
// rule reads it.
func (j *Job) Start() time.Time { return j.start }

// ExtraNonce returns the current extra-nonce pair.
func (j *Job) ExtraNonce() (uint32, uint32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.n1, j.n2
}

// Header renders the 80-byte header for the current transaction set.
func (j *Job) Header(ts, nonce uint32) []byte {
	return j.tmpl.HeaderBytes(ts, nonce)
}

// UpdateNonce rolls the extra-nonce pair after an exhausted nonce range: n2
// increments, and on wrap n1 increments. The coinbase changes with the pair,
// giving the next search a fresh header space.
func (j *Job) UpdateNonce() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.n2++
	if j.n2 == 0 {
		j.n1++
	}
	j.tmpl.txs[0] = j.tmpl.buildCoinbase(j.n1, j.n2)
	j.tmpl.Refresh()
}

// Destroy marks the job dead. The flag is monotonic; calling Destroy twice is
// a programming error and panics.
func (j *Job) Destroy() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.destroyed {
		panic("mining: job destroyed twice")
	}
	j.destroyed = true
}

// Destroyed reports whether the job has been destroyed.
func (j *Job) Destroyed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.destroyed
}

// Commit finishes the job on the work path. A destroyed job returns no block
// and no error; a second commit is an error.
func (j *Job) Commit(ts, nonce uint32) (*Block, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.destroyed {
		return nil, nil
	}
	if j.committed {
		return nil, errors.New(errors.ErrorTypeInternal, "commit", "job already committed")
	}

	block, err := j.tmpl.Commit(j.tmpl.GetProof(j.n1, j.n2, ts, nonce))
	if err != nil {
		return nil, err
	}
	j.committed = true
	return block, nil
}

// CommitCoinstakeTime finishes the job on the stake path, returning the
// unsigned block. A destroyed job returns no block and no error; a second
// commit is an error.
func (j *Job) CommitCoinstakeTime(nTime uint32, coin *chain.Coin) (*Block, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.destroyed {
		return nil, nil
	}
	if j.committed {
		return nil, errors.New(errors.ErrorTypeInternal, "commit_coinstake", "job already committed")
	}

	block, err := j.tmpl.CommitCoinstake(nTime, coin)
	if err != nil {
		return nil, err
	}
	j.committed = true
	return block, nil
}

// Hashes returns the total header hashes attempted for a current nonce
// position: (n1*2^32 + n2)*2^32 + nonce. The count exceeds 64 bits, so it is
// returned as a big integer.
func (j *Job) Hashes(nonce uint32) *big.Int {
	j.mu.Lock()
	defer j.mu.Unlock()

	extra := new(big.Int).SetUint64(uint64(j.n1)<<32 | uint64(j.n2))
	total := new(big.Int).Lsh(extra, 32)
	return total.Add(total, new(big.Int).SetUint64(uint64(nonce)))
}

// Rate returns the average hash rate since the job started, in hashes per
// second.
func (j *Job) Rate(nonce uint32) float64 {
	elapsed := j.clock.Now().Sub(j.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	hashes, _ := new(big.Float).SetInt(j.Hashes(nonce)).Float64()
	return hashes / elapsed
}
