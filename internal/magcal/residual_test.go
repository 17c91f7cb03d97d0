// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledContext(samples []Vector3, params [NumParams]float64) *Context {
	c := &Context{}
	c.init(0)
	copy(c.Samples[:], samples)
	c.Count = len(samples)
	c.Parameters = params
	return c
}

func TestSphereFitnessExactSphere(t *testing.T) {
	t.Parallel()

	samples := spiralSphere(NumSamples, Vector3{X: 5, Y: -10, Z: 2}, constantRadius(300))
	c := filledContext(samples, [NumParams]float64{300, -5, 10, -2})

	assert.Less(t, c.SphereFitness(), 1e-20)
	for i, r := range c.residuals {
		assert.InDelta(t, 0, r, 1e-12, "residual %d", i)
	}
}

func TestSphereFitnessPermutationInvariant(t *testing.T) {
	t.Parallel()

	samples := spiralSphere(NumSamples, Vector3{X: 5, Y: -10, Z: 2}, constantRadius(300))
	reversed := make([]Vector3, len(samples))
	for i := range samples {
		reversed[len(samples)-1-i] = samples[i]
	}
	params := [NumParams]float64{250, 3, -7, 11}

	a := filledContext(samples, params).SphereFitness()
	b := filledContext(reversed, params).SphereFitness()
	require.Greater(t, a, 0.0)
	assert.InEpsilon(t, a, b, 1e-12)
}

func TestSphereFitnessSmallRadiusClamped(t *testing.T) {
	t.Parallel()

	for _, r := range []float64{0.5, -0.3, 0} {
		c := filledContext([]Vector3{{X: 2}}, [NumParams]float64{r, 1, 0, 0})
		c.SphereFitness()

		assert.Equal(t, 1.0, c.Parameters[0], "radius %v", r)
		// scale falls back to 1: 1 - |(2,0,0)+(1,0,0)|^2
		assert.Equal(t, -8.0, c.residuals[0])
		// unused slots hold the zero vector
		assert.Equal(t, 0.0, c.residuals[1])
	}
}

func TestSphereFitnessNegativeRadiusKept(t *testing.T) {
	t.Parallel()

	c := filledContext([]Vector3{{X: 4}}, [NumParams]float64{-2, 0, 0, 0})
	c.SphereFitness()

	assert.Equal(t, -2.0, c.Parameters[0])
	assert.Equal(t, -3.0, c.residuals[0])
}

func TestContextAccept(t *testing.T) {
	t.Parallel()

	a := Vector3{X: 100}
	b := Vector3{X: -100}
	near := Vector3{X: -60}
	cc := Vector3{Y: 100}

	c := &Context{}
	c.init(0)

	assert.True(t, c.accept(a))
	assert.True(t, c.accept(b))
	assert.False(t, c.accept(near), "within SampleDistance of the previous sample")
	assert.True(t, c.accept(cc))
	assert.False(t, c.accept(a), "duplicate of an earlier sample")
	assert.Equal(t, 3, c.Count)
	assert.Equal(t, []Vector3{a, b, cc}, c.Samples[:c.Count])
}

func TestContextAcceptExactDistanceRejected(t *testing.T) {
	t.Parallel()

	c := &Context{}
	c.init(0)
	require.True(t, c.accept(Vector3{}))
	assert.False(t, c.accept(Vector3{Z: SampleDistance}))
	assert.True(t, c.accept(Vector3{Z: SampleDistance + 0.001}))
}

func TestContextInitSeeds(t *testing.T) {
	t.Parallel()

	c := &Context{Count: 7, PassCount: 1, Complete: true}
	c.init(3)

	assert.Equal(t, 3, c.Instance)
	assert.Equal(t, [NumParams]float64{20, 20, 20, 20}, c.Parameters)
	assert.Zero(t, c.Count)
	assert.Zero(t, c.PassCount)
	assert.False(t, c.Complete)
	assert.False(t, c.Fault)
}
