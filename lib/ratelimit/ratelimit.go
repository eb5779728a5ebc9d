// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides a keyed fixed-window rate limiter. The
// service uses it to cap downloads per (blob, project) pair; keys are
// opaque strings composed by the caller.
package ratelimit

import (
	"sync"
	"time"

	"github.com/bureau-foundation/symvault/lib/clock"
)

// DefaultWindow is the window duration used when New is given zero.
const DefaultWindow = time.Second

type window struct {
	count int
	start time.Time
}

// Limiter counts calls per key within fixed windows. Safe for
// concurrent use; a single mutex guards the key map, so counts are
// never lost between concurrent callers on the same key.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	clock   clock.Clock
	entries map[string]*window
}

// New creates a Limiter with the given window duration. A zero
// duration means DefaultWindow; a nil clk means the real clock.
func New(windowLength time.Duration, clk clock.Clock) *Limiter {
	if windowLength <= 0 {
		windowLength = DefaultWindow
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Limiter{
		window:  windowLength,
		clock:   clk,
		entries: make(map[string]*window),
	}
}

// Allow reports whether the call for key is within limit for the
// current window, and counts the call: checking is consuming. Once the
// window's count reaches limit, further calls return false until the
// window lapses. A limit of zero or less denies everything.
func (l *Limiter) Allow(key string, limit int) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.start) >= l.window {
		entry = &window{start: now}
		l.entries[key] = entry
		l.pruneLocked(now)
	}

	entry.count++
	return entry.count <= limit
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// pruneLocked drops entries whose window has lapsed. Runs only when a
// new window starts, which bounds the map to keys active within the
// last window without a background sweeper.
func (l *Limiter) pruneLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.start) >= l.window {
			delete(l.entries, key)
		}
	}
}
