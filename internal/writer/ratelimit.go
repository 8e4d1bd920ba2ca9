// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of carbon-writer.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package writer

import (
	"sync"
	"time"
)

// secondLimiter enforces a per-wall-clock-second budget on commit
// operations. It intentionally does not use golang.org/x/time/rate: that
// limiter's continuous token refill cannot express the specified
// discrete-window behavior, including the documented quirk that a
// backend call stalling for more than one second grants a full new
// budget on the next commit (the window resets purely on lastSecond
// changing, not on elapsed time since the last reset).
type secondLimiter struct {
	mu         sync.Mutex
	limit      int
	lastSecond int64
	updates    int
}

func newSecondLimiter(limit int) *secondLimiter {
	return &secondLimiter{limit: limit}
}

// setLimit swaps the budget, used by the shutdown hook to apply
// MAX_UPDATES_PER_SECOND_ON_SHUTDOWN.
func (l *secondLimiter) setLimit(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = n
}

// charge accounts n operations just performed against the current
// window and blocks until the next second boundary if that pushes the
// window at or past the budget.
func (l *secondLimiter) charge(n int) {
	l.mu.Lock()
	thisSecond := time.Now().Unix()
	if thisSecond != l.lastSecond {
		l.lastSecond = thisSecond
		l.updates = n
	} else {
		l.updates += n
	}
	shouldWait := l.limit > 0 && l.updates >= l.limit
	l.mu.Unlock()

	if shouldWait {
		sleepToNextSecond()
	}
}

func sleepToNextSecond() {
	now := time.Now()
	next := now.Truncate(time.Second).Add(time.Second)
	time.Sleep(next.Sub(now))
}
