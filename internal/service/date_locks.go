package service

import (
	"sync"
	"time"
)

// dateLocks hands out one mutex per calendar date so concurrent computations
// of the same date serialize while different dates proceed independently.
// Entries are reference counted and dropped once no caller holds them.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	sync.Mutex
	refs int
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]*dateLock)}
}

// lock blocks until the date is free and returns the matching unlock func.
func (l *dateLocks) lock(date time.Time) func() {
	key := date.Format("2006-01-02")

	l.mu.Lock()
	dl, ok := l.locks[key]
	if !ok {
		dl = &dateLock{}
		l.locks[key] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.Lock()

	return func() {
		dl.Unlock()

		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// held returns the number of dates with at least one holder or waiter.
func (l *dateLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
