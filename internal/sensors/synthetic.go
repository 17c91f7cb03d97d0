// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"

	"github.com/relabs-tech/magcal/internal/magcal"
)

// Sphere describes the field one synthetic instance sweeps over, in µT×10.
type Sphere struct {
	Radius float64
	Center magcal.Vector3
}

// SyntheticSource walks each sphere along a golden-angle spiral of Points
// readings and then starts over. It is used for bench runs without hardware.
type SyntheticSource struct {
	spheres []Sphere
	points  int
	reads   int
}

func NewSyntheticSource(points int, spheres ...Sphere) *SyntheticSource {
	if points <= 0 {
		points = magcal.NumSamples
	}
	return &SyntheticSource{spheres: spheres, points: points}
}

func (s *SyntheticSource) Read() { s.reads++ }

func (s *SyntheticSource) Healthy(i int) bool { return s.reads > 0 && i >= 0 && i < len(s.spheres) }

func (s *SyntheticSource) Field(i int) magcal.Vector3 {
	sp := s.spheres[i]
	k := (s.reads - 1) % s.points
	golden := math.Pi * (3 - math.Sqrt(5))
	z := 1 - (float64(k)+0.5)*2/float64(s.points)
	rr := math.Sqrt(1 - z*z)
	th := golden * float64(k)
	return magcal.Vector3{
		X: sp.Center.X + sp.Radius*rr*math.Cos(th),
		Y: sp.Center.Y + sp.Radius*rr*math.Sin(th),
		Z: sp.Center.Z + sp.Radius*z,
	}
}

func (s *SyntheticSource) Count() int { return len(s.spheres) }
