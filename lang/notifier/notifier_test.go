package notifier_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mna/nelumbo/lang/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyBeforeWait(t *testing.T) {
	var n notifier.Notifier
	n.Notify()

	// the latch stays set until reset, so an immediate wait succeeds
	start := time.Now()
	require.True(t, n.Wait(notifier.NoTimeout))
	assert.Less(t, time.Since(start), time.Second)

	// and so does a second one
	require.True(t, n.Wait(0))

	n.Reset()
	assert.False(t, n.Wait(0))
}

func TestTimedWait(t *testing.T) {
	var n notifier.Notifier

	start := time.Now()
	notified := n.Wait(20 * time.Millisecond)
	assert.False(t, notified)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNotifyWakesWaiter(t *testing.T) {
	var n notifier.Notifier

	done := make(chan bool, 1)
	go func() {
		done <- n.Wait(10 * time.Second)
	}()

	// give the waiter a chance to block, then notify from this goroutine
	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	n.Notify()

	select {
	case notified := <-done:
		assert.True(t, notified)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not wake")
	}
}

func TestNotifyWakesAllWaiters(t *testing.T) {
	var n notifier.Notifier
	var wg sync.WaitGroup

	results := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- n.Wait(10 * time.Second)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	n.Notify()
	wg.Wait()
	close(results)

	count := 0
	for notified := range results {
		assert.True(t, notified)
		count++
	}
	assert.Equal(t, 3, count)
}

func TestInterruptWakesWithoutNotify(t *testing.T) {
	var n notifier.Notifier

	done := make(chan bool, 1)
	go func() {
		done <- n.Wait(10 * time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	n.Interrupt()

	select {
	case notified := <-done:
		assert.False(t, notified)
		assert.Less(t, time.Since(start), time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not wake")
	}

	// the interrupt was consumed, a later notify still works
	n.Notify()
	assert.True(t, n.Wait(0))
}

func TestPendingInterruptConsumedByNextWait(t *testing.T) {
	var n notifier.Notifier
	n.Interrupt()

	start := time.Now()
	assert.False(t, n.Wait(10*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotifyPreferredOverInterrupt(t *testing.T) {
	var n notifier.Notifier
	n.Notify()
	n.Interrupt()

	// a set latch wins over a pending interrupt
	assert.True(t, n.Wait(0))
}

func TestZeroTimeoutPollOnSetLatch(t *testing.T) {
	// a zero-timeout wait on a set latch must always observe the
	// notification, never lose a race against the expired timer
	var n notifier.Notifier
	n.Notify()
	for i := 0; i < 10000; i++ {
		require.True(t, n.Wait(0))
	}
}

func TestResetIsIdempotent(t *testing.T) {
	var n notifier.Notifier
	n.Reset()
	n.Reset()
	assert.False(t, n.Wait(0))

	n.Notify()
	n.Notify()
	assert.True(t, n.Wait(0))
}
