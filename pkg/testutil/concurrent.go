package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "storegate/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes   int32
	Errors      int32
	NotFounds   int32
	Unavailable int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.NotFounds + r.Unavailable
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// Errors are counted as not_found, cache_unavailable, or generic.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, notFounds, unavailable atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			case dErrors.HasCode(err, dErrors.CodeCacheUnavailable):
				unavailable.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		Errors:      errs.Load(),
		NotFounds:   notFounds.Load(),
		Unavailable: unavailable.Load(),
	}
}
