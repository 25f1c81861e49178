package pool

import (
	"errors"
	"fmt"
)

// allocate makes a slice of n elements, turning the runtime's makeslice
// panic into ErrAllocation.
func allocate[T any](n int) (s []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("%w: %d elements: %v", ErrAllocation, n, r)
		}
	}()

	return make([]T, n), nil
}

// joinErrors collapses option errors; a single error is returned as is.
func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
