// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sphereResidual is 1 - |s+o|^2/r^2 for one sample, written out
// independently of computeResiduals.
func sphereResidual(p [NumParams]float64, s Vector3) float64 {
	a := 1 / (p[0] * p[0])
	dx, dy, dz := s.X+p[1], s.Y+p[2], s.Z+p[3]
	return 1 - a*(dx*dx+dy*dy+dz*dz)
}

func TestEstimateJacobianStoresRawDifferences(t *testing.T) {
	t.Parallel()

	params := [NumParams]float64{250, 1, 2, 3}
	c := filledContext(spiralSphere(NumSamples, center300, constantRadius(300)), params)

	require.NoError(t, c.estimateJacobian(HeapAllocator{}))

	for row := 0; row < NumParams; row++ {
		nudged := params
		nudged[row] += JacobianDelta
		for col := 0; col < NumSamples; col++ {
			want := sphereResidual(params, c.Samples[col]) - sphereResidual(nudged, c.Samples[col])
			got := c.jacobian[row*NumSamples+col]
			assert.InDelta(t, want, got, 1e-15, "jacobian[%d][%d]", row, col)
			// A derivative would be around 1e-2; the raw step is many orders smaller.
			assert.Less(t, math.Abs(got), 1e-8, "jacobian[%d][%d]", row, col)
		}
	}
	for i := range params {
		assert.InDelta(t, params[i], c.Parameters[i], 1e-12, "parameter %d", i)
	}
}

func TestEstimateJacobianScratchFailure(t *testing.T) {
	t.Parallel()

	c := filledContext(spiralSphere(NumSamples, center300, constantRadius(300)), [NumParams]float64{250, 1, 2, 3})
	err := c.estimateJacobian(&limitedAllocator{contextsOK: true})

	assert.ErrorIs(t, err, ErrAllocation)
	assert.True(t, c.Fault)
}

func TestSolveNormalAddsDampingToDiagonal(t *testing.T) {
	t.Parallel()

	// Rows e0+e1, e1, e2, e3 give J*Jt = [[2,1],[1,1]] ⊕ I.
	c := &Context{}
	c.jacobian[0*NumSamples+0] = 1
	c.jacobian[0*NumSamples+1] = 1
	c.jacobian[1*NumSamples+1] = 1
	c.jacobian[2*NumSamples+2] = 1
	c.jacobian[3*NumSamples+3] = 1

	require.NoError(t, c.solveNormal(1))

	// inverse of [[3,1],[1,2]] ⊕ 2I
	want := [NumParams * NumParams]float64{
		0.4, -0.2, 0, 0,
		-0.2, 0.6, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0, 0.5,
	}
	for i := range want {
		assert.InDelta(t, want[i], c.normal[i], 1e-12, "normal[%d]", i)
	}
}

func TestApplyUpdateRowMajor(t *testing.T) {
	t.Parallel()

	c := &Context{}
	for i := range c.normal {
		c.normal[i] = float64(i + 1)
	}
	c.rhs = [NumParams]float64{1, 2, 3, 4}
	c.Parameters = [NumParams]float64{100, 0, 0, 0}

	c.applyUpdate()

	// p[row] += sum(rhs[col] * normal[row][col]); the transpose would give 90, 100, 110, 120.
	assert.Equal(t, [NumParams]float64{130, 70, 110, 150}, c.Parameters)
}
