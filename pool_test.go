package nqgemm

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Fatalf("workers: got %d, want 4", pool.Workers())
	}

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()

	if count.Load() != 100 {
		t.Errorf("tasks run: got %d, want 100", count.Load())
	}
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()
	if pool.Workers() <= 0 {
		t.Errorf("default worker count: got %d", pool.Workers())
	}
}

func TestTryParallelCoversRange(t *testing.T) {
	check := func(pool *WorkerPool, n int) {
		seen := make([]atomic.Bool, n)
		tryParallel(pool, n, func(i int) {
			if seen[i].Swap(true) {
				t.Errorf("index %d visited twice", i)
			}
		})
		for i := range seen {
			if !seen[i].Load() {
				t.Errorf("index %d never visited", i)
			}
		}
	}

	check(nil, 17)
	check(nil, 0)

	pool := NewWorkerPool(3)
	defer pool.Close()
	check(pool, 1)
	check(pool, 64)
}

// tryParallel must not return before every task has finished; the engine
// relies on that as the barrier between quantization and compute.
func TestTryParallelBarrier(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var done atomic.Int64
	tryParallel(pool, 32, func(i int) {
		done.Add(1)
	})
	if done.Load() != 32 {
		t.Fatalf("returned with %d of 32 tasks complete", done.Load())
	}
}
