package utils

import (
	"errors"
	"sync"
)

// ParallelMap runs fn over every item concurrently and returns the results
// in input order. Used for batch image processing, where each item is an
// independent resize+upload.
func ParallelMap[T, R any](items []T, fn func(T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		go func(index int, it T) {
			defer wg.Done()
			results[index], errs[index] = fn(it)
		}(i, item)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
