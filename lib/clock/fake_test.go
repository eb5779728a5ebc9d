// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(testEpoch)
	if got := c.Now(); !got.Equal(testEpoch) {
		t.Errorf("Now() = %v, want %v", got, testEpoch)
	}

	c.Advance(3 * time.Second)
	if got := c.Now(); !got.Equal(testEpoch.Add(3 * time.Second)) {
		t.Errorf("Now() after advance = %v, want %v", got, testEpoch.Add(3*time.Second))
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(testEpoch)
	ch := c.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before the clock advanced")
	default:
	}

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(testEpoch.Add(5 * time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, testEpoch.Add(5*time.Second))
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	c := Fake(testEpoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
	select {
	case <-c.After(-time.Second):
	default:
		t.Fatal("After(-1s) did not fire immediately")
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Spanning three intervals fires three times, but the channel
	// buffers only one tick; the rest are dropped, matching
	// time.Ticker.
	c.Advance(3 * time.Second)

	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire")
	}

	// Drain: only the single buffered tick should be present.
	select {
	case <-ticker.C:
		t.Fatal("ticker queued more than one tick")
	default:
	}

	// The ticker keeps firing on subsequent advances.
	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after reschedule")
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}

	if got := c.PendingCount(); got != 0 {
		t.Errorf("PendingCount() = %d after Stop, want 0", got)
	}
}

func TestFakeTickerReset(t *testing.T) {
	c := Fake(testEpoch)
	ticker := c.NewTicker(10 * time.Second)
	defer ticker.Stop()

	ticker.Reset(time.Second)
	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire at the reset interval")
	}
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	c := Fake(testEpoch)

	done := make(chan struct{})
	go func() {
		c.Sleep(2 * time.Second)
		close(done)
	}()

	c.WaitForTimers(1)
	select {
	case <-done:
		t.Fatal("Sleep returned before the clock advanced")
	default:
	}

	c.Advance(2 * time.Second)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeConcurrentWaiters(t *testing.T) {
	c := Fake(testEpoch)

	const waiters = 16
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Sleep(time.Second)
		}()
	}

	c.WaitForTimers(waiters)
	c.Advance(time.Second)
	wg.Wait()
}

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := Fake(testEpoch)

	late := c.After(3 * time.Second)
	early := c.After(time.Second)

	c.Advance(3 * time.Second)

	lateTime := <-late
	earlyTime := <-early
	if earlyTime.After(lateTime) {
		t.Errorf("early waiter fired at %v, after late waiter at %v", earlyTime, lateTime)
	}
}

func TestRealClockBasics(t *testing.T) {
	c := Real()

	before := time.Now()
	now := c.Now()
	after := time.Now()
	if now.Before(before) || now.After(after) {
		t.Errorf("Real().Now() = %v outside [%v, %v]", now, before, after)
	}

	ticker := c.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C:
	case <-time.After(5 * time.Second):
		t.Fatal("real ticker did not fire")
	}
}
