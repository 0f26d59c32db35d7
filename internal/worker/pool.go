package worker

import (
	"context"
	"sync"
)

// Task produces one result. It receives the pool's context and must return
// promptly once that context is done.
type Task[T any] func(ctx context.Context) T

type slot[T any] struct {
	index int
	run   Task[T]
}

// Pool runs tasks on a fixed number of workers and returns their results in
// submission order. Every accepted task runs exactly once; after
// cancellation tasks still run so they can report the context error.
type Pool[T any] struct {
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan slot[T]
	wg      sync.WaitGroup

	sendMu sync.RWMutex // held for reading while sending, for writing to close the queue
	mu     sync.Mutex
	closed bool
	out    []T
}

// NewPool creates a pool with the given number of workers (minimum 1)
// whose tasks are canceled with ctx
func NewPool[T any](ctx context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool[T]{
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan slot[T], workers*2),
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
}

func (p *Pool[T]) work() {
	defer p.wg.Done()
	for s := range p.queue {
		result := s.run(p.ctx)
		p.mu.Lock()
		p.out[s.index] = result
		p.mu.Unlock()
	}
}

// Submit queues a task and reports whether it was accepted.
// Tasks submitted after Wait or Shutdown are rejected.
func (p *Pool[T]) Submit(task Task[T]) bool {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	index := len(p.out)
	var zero T
	p.out = append(p.out, zero)
	p.mu.Unlock()

	p.queue <- slot[T]{index: index, run: task}
	return true
}

// Wait stops accepting tasks, waits for the queued ones and returns the
// results indexed by submission order
func (p *Pool[T]) Wait() []T {
	p.sendMu.Lock()
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.sendMu.Unlock()

	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.out))
	copy(out, p.out)
	return out
}

// Shutdown cancels running tasks and waits for the workers to drain
func (p *Pool[T]) Shutdown() {
	p.cancel()
	p.Wait()
}
