package timewheel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimerBasic matches spec.md §8 scenario 1.
func TestTimerBasic(t *testing.T) {
	w := New(&Config{Slots: DefaultSlots, WorkerPoolSize: 1})
	defer w.Terminate()

	var wg sync.WaitGroup
	wg.Add(1)

	w.Schedule(func() { wg.Done() }, Seconds(1))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire within 5s")
	}

	assert.Eventually(t, func() bool { return w.Len() == 0 }, time.Second, 10*time.Millisecond)
}

// TestLongRangeTimer matches spec.md §8 scenario 3: a wheel of 360 slots
// scheduling T=370 places the timer one revolution out, so the first visit
// only decrements it.
func TestLongRangeTimer(t *testing.T) {
	w := New(&Config{Slots: 360})
	defer w.Terminate()

	var fired bool
	timer := w.Schedule(func() { fired = true }, Seconds(370))
	require.Equal(t, 1, timer.remainingTicks)

	now := time.Now().Unix()
	slotTick := now + 370

	first := w.Check(slotTick)
	assert.Empty(t, first)
	assert.False(t, fired)

	second := w.Check(slotTick)
	assert.Len(t, second, 1)
}

func TestScheduleIsCancelable(t *testing.T) {
	w := New(&Config{Slots: 360})
	defer w.Terminate()

	var fired bool
	timer := w.Schedule(func() { fired = true }, Seconds(10))
	timer.Cancel()

	now := time.Now().Unix()
	for _, ts := range w.Check(now + 10) {
		ts.fire()
	}

	assert.False(t, fired)
}

func TestNormalizeExpirationIdempotent(t *testing.T) {
	assert.Equal(t, 10, Seconds(10).Seconds())
	assert.Equal(t, 10, After(10*time.Second).Seconds())
	assert.Equal(t, 10, At(time.Now().Add(10*time.Second)).Seconds())
}

func TestExpiryPastInstantIsZero(t *testing.T) {
	assert.Equal(t, 0, At(time.Now().Add(-time.Hour)).Seconds())
}
