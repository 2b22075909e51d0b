// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Workers resolves a user-facing job count: n <= 0 means all CPUs.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// ParallelizeWithWorkers runs fn over [0, items) using at most workers goroutines,
// each handling one contiguous chunk, and waits for all of them.
func ParallelizeWithWorkers(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn on the calling goroutine when items < threshold,
// otherwise like ParallelizeWithWorkers.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items < threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	ParallelizeWithWorkers(items, workers, fn)
}
