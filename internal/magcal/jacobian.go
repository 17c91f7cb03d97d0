// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

// estimateJacobian fills c.jacobian row by row with the change in each
// residual when one parameter is nudged by JacobianDelta. Entries are raw
// differences and are not divided by the step.
func (c *Context) estimateJacobian(alloc Allocator) error {
	base := alloc.Scratch(NumSamples)
	if len(base) < NumSamples {
		return c.fail(ErrAllocation)
	}

	c.computeResiduals()
	copy(base, c.residuals[:])

	for row := 0; row < NumParams; row++ {
		c.Parameters[row] += JacobianDelta
		c.computeResiduals()
		for col := 0; col < NumSamples; col++ {
			c.jacobian[row*NumSamples+col] = base[col] - c.residuals[col]
		}
		c.Parameters[row] -= JacobianDelta
	}
	return nil
}
