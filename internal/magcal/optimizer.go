// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import "math"

// Optimizer runs the damped Gauss-Newton sphere fit on a context.
type Optimizer struct {
	alloc   Allocator
	damping float64 // initial lambda
}

// NewOptimizer returns an optimizer that takes its scratch buffers from
// alloc. A nil alloc uses the heap.
func NewOptimizer(alloc Allocator) *Optimizer {
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	return &Optimizer{alloc: alloc, damping: 1}
}

// Fit refines c.Parameters from the context's current state. Each step
// multiplies lambda by Gradient on a non-improving step and divides it on
// an improving one; the fit ends when the escalation power exceeds
// GradientPowerLimit or fitness drops below half of AimedFitness. The
// best parameters seen are restored and their fitness returned.
//
// On a fault c.Fault is set, the parameters are left as they were at the
// failing step and Fit returns -1.
func (o *Optimizer) Fit(c *Context) (float64, error) {
	lambda := o.damping
	power := 0
	c.Steps = 0
	c.Escalations = 0

	last := c.SphereFitness()
	best := last
	bestParams := c.Parameters

	for power <= GradientPowerLimit {
		c.jacobian = [NumParams * NumSamples]float64{}
		c.normal = [NumParams * NumParams]float64{}

		if err := c.estimateJacobian(o.alloc); err != nil {
			return -1, err
		}
		if err := c.solveNormal(lambda); err != nil {
			return -1, err
		}
		c.accumulateRHS()
		c.applyUpdate()
		c.Steps++

		cur := c.SphereFitness()
		// NaN never counts as an improvement.
		if cur >= last || math.IsNaN(cur) {
			lambda *= Gradient
			power++
			c.Escalations++
		} else {
			lambda /= Gradient
			last = cur
			power--
		}

		if cur < best {
			best = cur
			bestParams = c.Parameters
		}
		if cur < AimedFitness/2 {
			break
		}
	}

	c.Parameters = bestParams
	return best, nil
}
