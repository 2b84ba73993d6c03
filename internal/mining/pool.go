package mining

import (
	"math/big"
	"sync"
)

// mineTask is one nonce slice queued for a pool worker.
type mineTask struct {
	header []byte
	target *big.Int
	min    uint64
	max    uint64
	result chan int64
}

// WorkerPool runs nonce slices on a fixed set of goroutines so the search
// loop itself stays cooperative. Results arrive on per-task channels; -1
// means the slice held no winning nonce.
type WorkerPool struct {
	tasks chan mineTask
	wg    sync.WaitGroup
	once  sync.Once
}

// NewWorkerPool starts size workers. A size below one is clamped to one.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}

	p := &WorkerPool{
		tasks: make(chan mineTask, size),
	}

	for range size {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task.result <- Mine(task.header, task.target, task.min, task.max)
	}
}

// Mine queues a slice and returns the channel its result will arrive on.
func (p *WorkerPool) Mine(header []byte, target *big.Int, min, max uint64) <-chan int64 {
	task := mineTask{
		header: header,
		target: target,
		min:    min,
		max:    max,
		result: make(chan int64, 1),
	}
	p.tasks <- task
	return task.result
}

// Close drains the pool and waits for the workers to exit.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
