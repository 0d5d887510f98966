package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateLocks(t *testing.T) {
	locks := newDateLocks()
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(day)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locks.held())

	t.Run("different dates do not block", func(t *testing.T) {
		unlockA := locks.lock(day)
		unlockB := locks.lock(day.AddDate(0, 0, 1))
		assert.Equal(t, 2, locks.held())
		unlockB()
		unlockA()
		assert.Equal(t, 0, locks.held())
	})
}
