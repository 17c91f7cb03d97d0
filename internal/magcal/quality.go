// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Quality summarizes how well the corrected samples of one instance lie on
// the fitted sphere.
type Quality struct {
	MeanField  float64 `json:"mean_field"`
	StdDev     float64 `json:"stddev"`
	MinField   float64 `json:"min_field"`
	MaxField   float64 `json:"max_field"`
	Spread     float64 `json:"spread"` // StdDev / MeanField
	Confidence float64 `json:"confidence"`
}

// assessQuality measures the corrected field magnitude of every stored
// sample. Confidence falls linearly from 1 at zero spread to 0 at a spread
// of maxSpread.
func assessQuality(c *Context) Quality {
	const maxSpread = 0.5

	if c.Count == 0 {
		return Quality{}
	}
	offset := c.Offset()
	norms := make([]float64, c.Count)
	for i := 0; i < c.Count; i++ {
		norms[i] = c.Samples[i].Add(offset).Length()
	}

	q := Quality{
		MinField: floats.Min(norms),
		MaxField: floats.Max(norms),
	}
	if c.Count > 1 {
		q.MeanField, q.StdDev = stat.MeanStdDev(norms, nil)
	} else {
		q.MeanField = norms[0]
	}
	if q.MeanField > 0 {
		q.Spread = q.StdDev / q.MeanField
	}
	q.Confidence = math.Max(0, math.Min(1, 1-q.Spread/maxSpread))
	return q
}
