package vacuum

import (
	"sync"
)

// WorkerPool runs tasks on a fixed set of goroutines.
//
// Device calls block for the full miio round trip, so MQTT and HTTP
// handlers hand them to the pool instead of running them inline. The
// bounded queue applies backpressure: when every worker is busy and the
// queue is full, Submit reports failure rather than piling up goroutines
// against an unreachable device.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool starts a pool with the given number of workers.
// Worker counts below 1 are raised to 1. The queue holds twice the
// worker count.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	p := &WorkerPool{
		tasks: make(chan func(), workers*2),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}

	return p
}

// run consumes tasks until the queue is closed.
func (p *WorkerPool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task for execution.
//
// Returns:
//   - bool: false if the pool is closed or the queue is full
func (p *WorkerPool) Submit(task func()) bool {
	if task == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for in-flight tasks to finish.
// Safe to call more than once.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
