// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"io"
	"sync"

	"github.com/relabs-tech/magcal/internal/magcal"
)

// ConsoleReporter prints one line per progress event. Per-sample events
// are only printed when Verbose is set.
type ConsoleReporter struct {
	mu      sync.Mutex
	w       io.Writer
	Verbose bool
}

func NewConsoleReporter(w io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, Verbose: verbose}
}

func (c *ConsoleReporter) Report(p magcal.Progress) {
	if p.Stage == magcal.StageSampled && !c.Verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[MAG] %s\n", p)
}

// Multi fans every event out to each reporter in order.
type Multi []magcal.Reporter

func (m Multi) Report(p magcal.Progress) {
	for _, r := range m {
		if r != nil {
			r.Report(p)
		}
	}
}
