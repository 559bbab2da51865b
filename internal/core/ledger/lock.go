//
//  Copyright © Manetu Inc. All rights reserved.
//

package ledger

import (
	"context"
)

// chanMutex is a mutex built on a one-slot channel so that acquisition can select on ctx.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

// lock acquires the mutex or returns ctx.Err().  On success the caller must invoke the
// returned unlock function exactly once.
func (m chanMutex) lock(ctx context.Context) (func(), error) {
	// an already-cancelled ctx never wins the race against a free lock
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case <-m:
		return func() { m <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
