// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"sync"
	"time"

	"github.com/relabs-tech/magcal/internal/magcal"
	"github.com/relabs-tech/magcal/internal/timeutil"
)

type reading struct {
	field magcal.Vector3
	at    time.Time
	ok    bool
}

// latest keeps the most recent reading per instance for sources that are
// fed asynchronously. Read takes a snapshot so Healthy and Field stay
// consistent for the whole collection pass.
type latest struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	staleAfter time.Duration
	incoming   []reading
	current    []reading
}

func newLatest(instances int, clock timeutil.Clock, staleAfter time.Duration) *latest {
	if clock == nil {
		clock = timeutil.NewRealClock()
	}
	return &latest{
		clock:      clock,
		staleAfter: staleAfter,
		incoming:   make([]reading, instances),
		current:    make([]reading, instances),
	}
}

// set records a reading for instance i. Out-of-range instances are ignored.
func (l *latest) set(i int, field magcal.Vector3) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.incoming) {
		return false
	}
	l.incoming[i] = reading{field: field, at: l.clock.Now(), ok: true}
	return true
}

func (l *latest) Read() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	for i, r := range l.incoming {
		if r.ok && l.staleAfter > 0 && now.Sub(r.at) > l.staleAfter {
			r.ok = false
		}
		l.current[i] = r
	}
}

func (l *latest) Healthy(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return i >= 0 && i < len(l.current) && l.current[i].ok
}

func (l *latest) Field(i int) magcal.Vector3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.current) {
		return magcal.Vector3{}
	}
	return l.current[i].field
}

func (l *latest) Count() int { return len(l.incoming) }
