// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mag

import (
	"math"
	"time"
)

// Sample is one magnetometer reading as published on MQTT and stored in
// replay files. Mx, My and Mz are in µT×10.
type Sample struct {
	Instance int     `json:"instance"`
	Mx       int16   `json:"mx"`
	My       int16   `json:"my"`
	Mz       int16   `json:"mz"`
	Norm     float64 `json:"norm"` // µT
	Time     string  `json:"time"` // RFC3339
}

// NewSample builds a sample and fills in its magnitude and timestamp.
func NewSample(instance int, mx, my, mz int16, t time.Time) Sample {
	x := float64(mx) / 10
	y := float64(my) / 10
	z := float64(mz) / 10
	return Sample{
		Instance: instance,
		Mx:       mx,
		My:       my,
		Mz:       mz,
		Norm:     math.Sqrt(x*x + y*y + z*z),
		Time:     t.UTC().Format(time.RFC3339),
	}
}
