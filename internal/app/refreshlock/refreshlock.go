// Package refreshlock serialises refresh runs, either inside one process or
// across replicas sharing a Redis instance.
package refreshlock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to the refresh pipeline. TryLock never
// blocks: ok is false when another holder has the lock.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// Local is an in-process Locker.
type Local struct {
	sem chan struct{}
}

var _ Locker = (*Local)(nil)

// NewLocal creates an unlocked in-process lock.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

func (l *Local) TryLock(ctx context.Context) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-l.sem }) }, true, nil
	default:
		return nil, false, nil
	}
}
