// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import "math"

// spiralSphere returns n points spread over a sphere with a golden-angle
// spiral. radius picks the radius of point i.
func spiralSphere(n int, center Vector3, radius func(i int) float64) []Vector3 {
	golden := math.Pi * (3 - math.Sqrt(5))
	pts := make([]Vector3, n)
	for i := 0; i < n; i++ {
		z := 1 - (float64(i)+0.5)*2/float64(n)
		rr := math.Sqrt(1 - z*z)
		th := golden * float64(i)
		r := radius(i)
		pts[i] = Vector3{
			X: center.X + r*rr*math.Cos(th),
			Y: center.Y + r*rr*math.Sin(th),
			Z: center.Z + r*z,
		}
	}
	return pts
}

func constantRadius(r float64) func(int) float64 {
	return func(int) float64 { return r }
}

// twoShells alternates between radius 200 and 400; no sphere fits it.
func twoShells(i int) float64 {
	if i%2 == 1 {
		return 200
	}
	return 400
}

// scriptedSensor replays a fixed sequence per instance, wrapping around.
// Each Read advances every instance by one reading.
type scriptedSensor struct {
	fields    [][]Vector3
	unhealthy map[int]bool
	reads     int
}

func newScriptedSensor(fields ...[]Vector3) *scriptedSensor {
	return &scriptedSensor{fields: fields, unhealthy: map[int]bool{}}
}

func (s *scriptedSensor) Read() { s.reads++ }

func (s *scriptedSensor) Healthy(i int) bool {
	return !s.unhealthy[i] && len(s.fields[i]) > 0
}

func (s *scriptedSensor) Field(i int) Vector3 {
	seq := s.fields[i]
	return seq[(s.reads-1)%len(seq)]
}

func (s *scriptedSensor) Count() int { return len(s.fields) }

// limitedAllocator fails scratch requests after the first scratchOK calls.
type limitedAllocator struct {
	contextsOK bool
	scratchOK  int
	scratch    int
}

func (a *limitedAllocator) Contexts(n int) []Context {
	if !a.contextsOK {
		return nil
	}
	return make([]Context, n)
}

func (a *limitedAllocator) Scratch(n int) []float64 {
	a.scratch++
	if a.scratch > a.scratchOK {
		return nil
	}
	return make([]float64, n)
}

// recorder collects progress events.
type recorder struct {
	events []Progress
}

func (r *recorder) Report(p Progress) { r.events = append(r.events, p) }

func (r *recorder) stages(stage Stage) []Progress {
	var out []Progress
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}
