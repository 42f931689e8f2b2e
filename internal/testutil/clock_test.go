package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_Pinned(t *testing.T) {
	start := At(12, 0)
	c := NewFixedClock(start)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now())
}

func TestFixedClock_SetAndAdvance(t *testing.T) {
	c := NewFixedClock(At(12, 0))

	c.Advance(90 * time.Second)
	assert.Equal(t, At(12, 1).Add(30*time.Second), c.Now())

	c.Set(At(23, 30))
	assert.Equal(t, At(23, 30), c.Now())
}

func TestFixedClock_ConcurrentAdvance(t *testing.T) {
	c := NewFixedClock(At(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Minute)
		}()
	}
	wg.Wait()

	assert.Equal(t, At(1, 0), c.Now())
}
