package staker

import (
	"context"
	"sync"
	"time"

	"github.com/bardlex/gostake/internal/chain"
	"github.com/bardlex/gostake/internal/mining"
	"github.com/bardlex/gostake/internal/wallet"
	"github.com/bardlex/gostake/pkg/errors"
	"github.com/bardlex/gostake/pkg/log"
)

// staleJobAge is how old a job may grow before a new mempool entry destroys
// it to pick up fresh transactions.
const staleJobAge = 10 * time.Second

// rpcTimeout bounds the loop's tip fetch, job creation and block submission;
// the stake search's coin and wallet lookups run without it.
const rpcTimeout = 30 * time.Second

// Config selects the supervisor's behavior.
type Config struct {
	// Account is the wallet account whose coins stake.
	Account string

	// RewardAddress receives the coinbase output on the work path.
	RewardAddress string

	// Staking selects the stake search; false selects the nonce search.
	Staking bool

	// UseBlockBits switches the kernel target source from the coin's value
	// to the block's bits. Off by default to match the source chain.
	UseBlockBits bool

	// WorkerPoolSize offloads nonce slices to that many workers; zero mines
	// inline.
	WorkerPoolSize int
}

// Staker is the long-running supervisor: it builds a job on the current tip,
// drives the appropriate searcher, submits the result, and reacts to tip and
// mempool events by destroying the active job.
type Staker struct {
	cfg     Config
	params  *chain.Params
	chain   chain.Chain
	wallet  wallet.Wallet
	builder mining.Builder
	clock   mining.Clock
	logger  *log.Logger
	emitter Emitter

	pool *mining.WorkerPool

	// yield parks the stake searcher inside an unchanged time slot. Tests
	// replace it to advance virtual time.
	yield func()

	mu       sync.Mutex
	running  bool
	stopping bool
	cur      *mining.Job
	stopped  chan struct{}

	// stopMu serializes Stop: at most one stop is in flight.
	stopMu sync.Mutex
}

// New creates a supervisor. A nil clock selects the system clock; a nil
// emitter discards events.
func New(cfg Config, params *chain.Params, c chain.Chain, w wallet.Wallet, b mining.Builder, clock mining.Clock, logger *log.Logger, emitter Emitter) *Staker {
	if clock == nil {
		clock = mining.RealClock{}
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Staker{
		cfg:     cfg,
		params:  params,
		chain:   c,
		wallet:  w,
		builder: b,
		clock:   clock,
		logger:  logger.WithComponent("staker"),
		emitter: emitter,
		yield:   func() { time.Sleep(100 * time.Millisecond) },
	}
}

// Open prepares resources: the worker pool when configured.
func (s *Staker) Open() {
	if s.cfg.WorkerPoolSize > 0 && s.pool == nil {
		s.pool = mining.NewWorkerPool(s.cfg.WorkerPoolSize)
	}
}

// Close releases resources. The supervisor must be stopped first.
func (s *Staker) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

// Running reports whether the loop is active.
func (s *Staker) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentJob returns the active job, or nil.
func (s *Staker) CurrentJob() *mining.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Start launches the supervisor loop. Starting an already running supervisor
// is a programming error.
func (s *Staker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New(errors.ErrorTypeInternal, "start", "staker already running")
	}

	s.running = true
	s.stopping = false
	s.stopped = make(chan struct{})

	go s.loop(s.stopped)

	s.logger.Info("staker started", "staking", s.cfg.Staking)
	return nil
}

// Stop destroys the active job, waits for the loop's one-shot stopped
// signal, then clears the state flags. At most one Stop runs at a time.
func (s *Staker) Stop() error {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "stop", "staker not running")
	}
	s.stopping = true
	s.destroyCurrentLocked()
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped

	s.mu.Lock()
	s.running = false
	s.stopping = false
	s.mu.Unlock()

	s.logger.Info("staker stopped")
	return nil
}

// NotifyTip reacts to a tip change. A new tip sharing the active job's
// previous block is a sibling of our attempt: someone else built on the same
// parent, so the job is destroyed.
func (s *Staker) NotifyTip(tip *chain.TipSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.Destroyed() {
		return
	}
	if tip.PrevBlock == s.cur.PrevBlock() {
		s.logger.Info("sibling tip, destroying job",
			"tip", tip.Hash.String(),
			"prev_block", tip.PrevBlock.String(),
		)
		s.cur.Destroy()
	}
}

// NotifyEntry reacts to a new mempool transaction. Jobs older than the
// staleness window are destroyed so the next template picks the entry up.
func (s *Staker) NotifyEntry() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.Destroyed() {
		return
	}
	if s.clock.Now().Sub(s.cur.Start()) > staleJobAge {
		s.logger.Debug("stale job, destroying for fresh mempool")
		s.cur.Destroy()
	}
}

// destroyCurrentLocked destroys the active job if it is still alive. Callers
// hold s.mu.
func (s *Staker) destroyCurrentLocked() {
	if s.cur != nil && !s.cur.Destroyed() {
		s.cur.Destroy()
	}
}

// loop runs until stopping: create a job, drive the searcher, submit.
func (s *Staker) loop(stopped chan struct{}) {
	defer close(stopped)

	for {
		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if stopping {
			return
		}

		if !s.iterate() {
			return
		}
	}
}

// iterate runs one loop body. It returns false when the loop must terminate
// (stop requested or unexpected error).
func (s *Staker) iterate() bool {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	tip, err := s.chain.Tip(ctx)
	cancel()
	if err != nil {
		return s.fail(err)
	}

	job, err := s.CreateJob(context.Background(), tip, s.cfg.RewardAddress)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if s.stopping {
		if !job.Destroyed() {
			job.Destroy()
		}
		s.mu.Unlock()
		return false
	}
	s.cur = job
	s.mu.Unlock()

	block, err := s.search(job, tip)

	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()

	if err != nil {
		return s.fail(err)
	}
	if block == nil {
		// Destroyed mid-search; next iteration builds on the fresh tip.
		return true
	}

	return s.submit(block)
}

// search drives the configured proof path on a job.
func (s *Staker) search(job *mining.Job, tip *chain.TipSnapshot) (*mining.Block, error) {
	if s.cfg.Staking {
		return s.searchStake(context.Background(), job, tip)
	}
	return s.searchWork(job)
}

// submit hands a finished block to the chain, sorting the outcome into the
// loop's recovery rules. Returns false only on unexpected errors.
func (s *Staker) submit(block *mining.Block) bool {
	blockHex, err := block.Hex()
	if err != nil {
		return s.fail(errors.Wrap(err, errors.ErrorTypeInternal, "submit",
			"failed to serialize block"))
	}
	hash := block.Hash()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	entry, err := s.chain.Add(ctx, blockHex, hash)
	cancel()

	if err != nil {
		if errors.IsVerify(err) {
			s.logger.LogSubmitRejected(hash.String(), block.Height, err.Error(), blockHex)
			return true
		}
		s.mu.Lock()
		stopping := s.stopping
		s.mu.Unlock()
		if stopping {
			return false
		}
		return s.fail(err)
	}

	if entry == nil {
		s.logger.Warn("bad-prevblk (race)", "block_hash", hash.String())
		return true
	}

	s.logger.LogBlockMinted(entry.Hash.String(), entry.Height, mining.ProofKind(block.Proof))
	s.emitter.EmitBlock(entry, block)
	return true
}

// fail emits an unexpected error and terminates the loop, unless the error
// merely reflects an in-flight stop.
func (s *Staker) fail(err error) bool {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return false
	}

	s.logger.WithError(err).Error("staking loop error")
	s.emitter.EmitError(err)
	return false
}

// CreateJob builds a fresh template on the given tip (fetched when nil) and
// wraps it in a job.
func (s *Staker) CreateJob(ctx context.Context, tip *chain.TipSnapshot, address string) (*mining.Job, error) {
	if tip == nil {
		var err error
		tipCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
		tip, err = s.chain.Tip(tipCtx)
		cancel()
		if err != nil {
			return nil, err
		}
	}
	if address == "" {
		address = s.cfg.RewardAddress
	}

	buildCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	tmpl, err := s.builder.Build(buildCtx, tip, address)
	cancel()
	if err != nil {
		return nil, err
	}

	return mining.NewJob(tmpl, s.clock), nil
}

// MineBlock performs one supervised attempt outside the loop: build a job on
// the tip, drive the searcher to completion, submit, and return the result.
func (s *Staker) MineBlock(ctx context.Context, tip *chain.TipSnapshot, address string) (*mining.Block, *chain.Entry, error) {
	if tip == nil {
		var err error
		tipCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
		tip, err = s.chain.Tip(tipCtx)
		cancel()
		if err != nil {
			return nil, nil, err
		}
	}

	job, err := s.CreateJob(ctx, tip, address)
	if err != nil {
		return nil, nil, err
	}

	block, err := s.search(job, tip)
	if err != nil {
		return nil, nil, err
	}
	if block == nil {
		return nil, nil, nil
	}

	blockHex, err := block.Hex()
	if err != nil {
		return nil, nil, err
	}

	entry, err := s.chain.Add(ctx, blockHex, block.Hash())
	if err != nil {
		return block, nil, err
	}
	return block, entry, nil
}
