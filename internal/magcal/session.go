// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"
	"time"

	"github.com/relabs-tech/magcal/internal/monitoring"
	"github.com/relabs-tech/magcal/internal/timeutil"
)

// Options configures a Session. Zero values select the defaults.
type Options struct {
	Clock     timeutil.Clock
	Reporter  Reporter
	Allocator Allocator

	// SampleInterval is the pause between collection passes.
	SampleInterval time.Duration
	// MaxRounds bounds the collect-and-fit rounds. Zero selects
	// DefaultMaxRounds; a negative value removes the bound.
	MaxRounds int
	// MaxCollectPasses bounds polling passes per round. Zero means no bound.
	MaxCollectPasses int
}

// InstanceResult is the outcome for one magnetometer.
type InstanceResult struct {
	Instance   int                `json:"instance"`
	Radius     float64            `json:"radius"`
	Offset     Vector3            `json:"offset"`
	Parameters [NumParams]float64 `json:"parameters"`
	Fitness    float64            `json:"fitness"`
	PassCount  int                `json:"pass_count"`
	Samples    int                `json:"samples"`
	Complete   bool               `json:"complete"`
	Fault      bool               `json:"fault"`
	Error      string             `json:"error,omitempty"`
	Quality    Quality            `json:"quality"`
}

// Result is the outcome of a session.
type Result struct {
	Success   bool             `json:"success"`
	Rounds    int              `json:"rounds"`
	Instances []InstanceResult `json:"instances"`
}

// Session runs rounds of sample collection and sphere fitting until every
// instance has passed twice in a row, the round budget runs out, or a
// critical fault occurs.
type Session struct {
	sensor    Sensor
	opts      Options
	optimizer *Optimizer
	collector *Collector
	contexts  []Context
	round     int
}

// NewSession prepares a session over sensor. No buffers are allocated
// until Run.
func NewSession(sensor Sensor, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = timeutil.NewRealClock()
	}
	if opts.Reporter == nil {
		opts.Reporter = discardReporter{}
	}
	if opts.Allocator == nil {
		opts.Allocator = HeapAllocator{}
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	return &Session{
		sensor:    sensor,
		opts:      opts,
		optimizer: NewOptimizer(opts.Allocator),
		collector: &Collector{
			Sensor:    sensor,
			Clock:     opts.Clock,
			Interval:  opts.SampleInterval,
			MaxPasses: opts.MaxCollectPasses,
			Reporter:  opts.Reporter,
		},
	}
}

// Run executes the session. The returned Result describes every instance
// even when an error is returned. Errors are ErrNoInstances, ErrAllocation,
// ErrSensorStalled, ErrBudgetExhausted or a *FaultError.
func (s *Session) Run() (Result, error) {
	defer func() { s.contexts = nil }()

	n := s.sensor.Count()
	if n < 1 {
		s.failed(ErrNoInstances)
		return Result{}, ErrNoInstances
	}

	s.contexts = s.opts.Allocator.Contexts(n)
	if len(s.contexts) < n {
		err := fmt.Errorf("%w: %d calibration contexts", ErrAllocation, n)
		s.failed(err)
		return Result{}, err
	}
	for i := range s.contexts {
		s.contexts[i].init(i)
	}

	for s.round = 0; !s.allComplete(); {
		if s.opts.MaxRounds > 0 && s.round >= s.opts.MaxRounds {
			break
		}
		s.round++

		// Completed instances keep their samples; unlike the flight code,
		// which clears every instance, only pending ones start over.
		for i := range s.contexts {
			if !s.contexts[i].Complete {
				s.contexts[i].Count = 0
			}
		}
		if err := s.collector.Collect(s.round, s.contexts); err != nil {
			s.failed(err)
			return s.result(), err
		}

		for i := range s.contexts {
			c := &s.contexts[i]
			if c.Complete {
				s.opts.Reporter.Report(progressFor(StageComplete, s.round, c))
				continue
			}
			if err := s.process(c); err != nil {
				monitoring.Logf("magcal: instance %d: critical fault in round %d: %v", c.Instance, s.round, err)
				s.opts.Reporter.Report(progressFor(StageFault, s.round, c))
				ferr := &FaultError{Instance: c.Instance, Err: err}
				s.failed(ferr)
				return s.result(), ferr
			}
		}
	}

	res := s.result()
	if !res.Success {
		err := fmt.Errorf("%w after %d rounds", ErrBudgetExhausted, s.round)
		s.failed(err)
		return res, err
	}
	s.opts.Reporter.Report(Progress{Stage: StageSucceeded, Instance: -1, Round: s.round})
	return res, nil
}

// process fits one instance and applies the pass policy. Two consecutive
// fits at or below AimedFitness complete the instance.
func (s *Session) process(c *Context) error {
	fitness, err := s.optimizer.Fit(c)
	if err != nil {
		return err
	}
	c.Fitness = fitness
	s.opts.Reporter.Report(progressFor(StageFitted, s.round, c))

	if fitness <= AimedFitness {
		c.PassCount++
		s.opts.Reporter.Report(progressFor(StagePassed, s.round, c))
	} else {
		c.PassCount = 0
	}
	c.Complete = c.PassCount >= PassesToComplete
	if c.Complete {
		monitoring.Logf("magcal: instance %d complete after %d rounds", c.Instance, s.round)
	}
	return nil
}

func (s *Session) allComplete() bool {
	for i := range s.contexts {
		if !s.contexts[i].Complete {
			return false
		}
	}
	return true
}

func (s *Session) failed(err error) {
	s.opts.Reporter.Report(Progress{Stage: StageFailed, Instance: -1, Round: s.round, Error: err.Error()})
}

func (s *Session) result() Result {
	res := Result{Rounds: s.round, Success: len(s.contexts) > 0}
	for i := range s.contexts {
		c := &s.contexts[i]
		ir := InstanceResult{
			Instance:   c.Instance,
			Radius:     c.Radius(),
			Offset:     c.Offset(),
			Parameters: c.Parameters,
			Fitness:    c.Fitness,
			PassCount:  c.PassCount,
			Samples:    c.Count,
			Complete:   c.Complete,
			Fault:      c.Fault,
		}
		if c.Err != nil {
			ir.Error = c.Err.Error()
		}
		if !c.Fault {
			ir.Quality = assessQuality(c)
		}
		res.Instances = append(res.Instances, ir)
		if !c.Complete || c.Fault {
			res.Success = false
		}
	}
	return res
}
