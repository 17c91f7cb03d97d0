// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import "math"

// computeResiduals fills c.residuals with 1 - |s + offset|^2 / r^2 for
// every sample slot. A radius with magnitude below 1 is clamped to 1 and
// the scale factor falls back to 1.
func (c *Context) computeResiduals() {
	a := 1.0
	if math.Abs(c.Parameters[0]) < 1 {
		c.Parameters[0] = 1
	} else {
		a = 1 / (c.Parameters[0] * c.Parameters[0])
	}
	ox, oy, oz := c.Parameters[1], c.Parameters[2], c.Parameters[3]
	for i := range c.Samples {
		dx := c.Samples[i].X + ox
		dy := c.Samples[i].Y + oy
		dz := c.Samples[i].Z + oz
		c.residuals[i] = 1 - a*(dx*dx+dy*dy+dz*dz)
	}
}

func (c *Context) squareSum() float64 {
	var sum float64
	for _, r := range c.residuals {
		sum += r * r
	}
	return sum
}

// SphereFitness recomputes the residuals for the current parameters and
// returns their sum of squares. Lower is better.
func (c *Context) SphereFitness() float64 {
	c.computeResiduals()
	return c.squareSum()
}
