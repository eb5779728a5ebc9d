// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that code
// depending on wall-clock time can be tested deterministically.
//
// Production code accepts a Clock parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly.
// Real() provides standard library behavior; Fake() provides a clock
// that stands still until Advance is called.
//
// # Wiring pattern
//
// Add a Clock field to structs that observe time:
//
//	type Limiter struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	limiter := NewLimiter(window, clock.Real())
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	limiter := NewLimiter(window, c)
//	c.Advance(window) // deterministically roll the window
//
// # Synchronizing with goroutines
//
// When a goroutine calls Sleep, After, or NewTicker on a FakeClock it
// registers a pending waiter. WaitForTimers blocks until a given
// number of waiters are registered, eliminating the race between
// registration and advancement that plagues tests built on
// time.Sleep.
package clock
