// Package locker provides the per-matter write locks the ledger serializes on.
package locker

import (
	"context"
	"sync"
)

// Local is an in-process keyed mutex. Waiters honor context cancellation and
// idle keys are dropped once their last holder releases.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	held chan struct{}
	refs int
}

// NewLocal creates a new in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &keyLock{held: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.held <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, lock)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.held
			l.drop(key, lock)
		})
	}, nil
}

func (l *Local) drop(key string, lock *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
