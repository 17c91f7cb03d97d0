// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"
	"time"

	"github.com/relabs-tech/magcal/internal/timeutil"
)

// Sensor is the magnetometer source polled by the collector. Read refreshes
// every instance at once; Healthy and Field then describe the latest
// reading of one instance.
type Sensor interface {
	Read()
	Healthy(instance int) bool
	Field(instance int) Vector3
	Count() int
}

// Collector fills contexts with well-spread samples.
type Collector struct {
	Sensor   Sensor
	Clock    timeutil.Clock
	Interval time.Duration
	// MaxPasses bounds the number of polling passes per call. Zero means
	// no bound.
	MaxPasses int
	Reporter  Reporter
}

// Collect polls the sensor until every context holds NumSamples samples.
// Contexts already at quota are left untouched. Between passes it sleeps
// for Interval.
func (col *Collector) Collect(round int, contexts []Context) error {
	reporter := col.Reporter
	if reporter == nil {
		reporter = discardReporter{}
	}
	clock := col.Clock
	if clock == nil {
		clock = timeutil.NewRealClock()
	}
	reporter.Report(Progress{Stage: StageCollecting, Instance: -1, Round: round})

	for passes := 0; pending(contexts) > 0; passes++ {
		if col.MaxPasses > 0 && passes >= col.MaxPasses {
			return fmt.Errorf("%w: %d instances short after %d passes",
				ErrSensorStalled, pending(contexts), passes)
		}

		col.Sensor.Read()
		for i := range contexts {
			c := &contexts[i]
			if c.Count == NumSamples {
				continue
			}
			if !col.Sensor.Healthy(c.Instance) {
				reporter.Report(progressFor(StageUnhealthy, round, c))
				continue
			}
			if c.accept(col.Sensor.Field(c.Instance)) {
				reporter.Report(progressFor(StageSampled, round, c))
			}
		}

		if pending(contexts) == 0 {
			break
		}
		clock.Sleep(col.Interval)
	}

	reporter.Report(Progress{Stage: StageSampleDone, Instance: -1, Round: round})
	return nil
}

func pending(contexts []Context) int {
	n := 0
	for i := range contexts {
		if contexts[i].Count < NumSamples {
			n++
		}
	}
	return n
}
