// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import "time"

// Algorithm constants. Parameters are ordered radius, offset X, offset Y, offset Z.
const (
	NumParams          = 4
	NumSamples         = 100
	AimedFitness       = 1.0
	DefaultMaxRounds   = 10
	SampleRate         = 5 // collection passes per second
	SampleDistance     = 50.0
	Gradient           = 5.0
	GradientPowerLimit = 8
	JacobianDelta      = 1e-9
	PassesToComplete   = 2

	seedParameter = 20.0
)

// DefaultSampleInterval is the pause between collection passes.
const DefaultSampleInterval = time.Second / SampleRate

// Context holds the calibration state of one magnetometer instance.
// All working buffers are fixed-size and owned by the context.
type Context struct {
	Instance   int
	Parameters [NumParams]float64
	Samples    [NumSamples]Vector3
	Count      int

	// Fitness is the best sum of squared residuals from the latest fit.
	Fitness   float64
	PassCount int
	Complete  bool
	Fault     bool
	Err       error

	// Steps and Escalations describe the latest fit.
	Steps       int
	Escalations int

	residuals [NumSamples]float64
	jacobian  [NumParams * NumSamples]float64
	normal    [NumParams * NumParams]float64
	rhs       [NumParams]float64
}

// init puts the context into its seeded state for the given instance.
func (c *Context) init(instance int) {
	*c = Context{Instance: instance}
	for i := range c.Parameters {
		c.Parameters[i] = seedParameter
	}
}

func (c *Context) Radius() float64 { return c.Parameters[0] }

// Offset is the vector added to a raw reading to center it on the sphere.
func (c *Context) Offset() Vector3 {
	return Vector3{X: c.Parameters[1], Y: c.Parameters[2], Z: c.Parameters[3]}
}

// accept stores field as the next sample when it is farther than
// SampleDistance from the previous sample and equal to none of the
// stored ones.
func (c *Context) accept(field Vector3) bool {
	if c.Count >= NumSamples {
		return false
	}
	if c.Count > 0 {
		if c.Samples[c.Count-1].Sub(field).Length() <= SampleDistance {
			return false
		}
		for i := 0; i < c.Count; i++ {
			if c.Samples[i] == field {
				return false
			}
		}
	}
	c.Samples[c.Count] = field
	c.Count++
	return true
}

func (c *Context) fail(err error) error {
	c.Fault = true
	c.Err = err
	return err
}
