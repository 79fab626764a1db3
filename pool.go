package nqgemm

import (
	"runtime"
	"sync"
)

// WorkerPool manages a fixed pool of worker goroutines for batch execution.
// A nil *WorkerPool is valid everywhere one is accepted and means fully
// sequential execution.
type WorkerPool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		workers: workers,
		tasks:   make(chan func(), workers*2),
	}

	// Start workers
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

// worker processes tasks from the queue
func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit adds a task to the pool
func (wp *WorkerPool) Submit(task func()) {
	wp.tasks <- task
}

// Workers returns the pool's worker count.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	close(wp.tasks)
	wp.wg.Wait()
}

// tryParallel runs fn(i) for every i in [0, n) and returns once all calls
// have completed. With a nil pool (or a single task) it degenerates to a
// plain sequential loop; with a pool the calls run as independent work items
// in arbitrary order. The return doubles as the phase barrier between
// activation quantization and tile compute.
func tryParallel(pool *WorkerPool, n int, fn func(i int)) {
	if pool == nil || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		pool.Submit(func() {
			defer wg.Done()
			fn(i)
		})
	}
	wg.Wait()
}
