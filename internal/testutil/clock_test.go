package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	for want := int64(1); want <= 3; want++ {
		assert.Equal(t, want, clock.Next())
	}
	assert.Equal(t, int64(3), clock.Current())
	assert.Equal(t, []int64{1, 2, 3}, clock.Issued())
}

func TestDeterministicClock_StartsAt(t *testing.T) {
	clock := NewDeterministicClockAt(40)
	assert.Equal(t, int64(40), clock.Current())
	assert.Equal(t, int64(41), clock.Next())
	assert.Equal(t, []int64{41}, clock.Issued())
}

func TestDeterministicClock_ResetReplaysSequence(t *testing.T) {
	clock := NewDeterministicClockAt(10)
	first := []int64{clock.Next(), clock.Next()}

	clock.Reset()
	assert.Equal(t, int64(10), clock.Current())
	assert.Empty(t, clock.Issued())
	assert.Equal(t, first, []int64{clock.Next(), clock.Next()})
}

func TestDeterministicClock_IssuedIsACopy(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Next()

	issued := clock.Issued()
	issued[0] = 99
	assert.Equal(t, []int64{1}, clock.Issued())
}

func TestDeterministicClock_ConcurrentNextIsGapFree(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 50, 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				clock.Next()
			}
		}()
	}
	wg.Wait()

	issued := clock.Issued()
	assert.Len(t, issued, workers*calls)
	for i, v := range issued {
		assert.Equal(t, int64(i+1), v)
	}
}
