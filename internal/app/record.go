// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"

	"github.com/relabs-tech/magcal/internal/telemetry"
)

func printRecord(w io.Writer, rec telemetry.Record) {
	status := "FAILED"
	if rec.Success {
		status = "OK"
	}
	fmt.Fprintf(w, "[CAL] %s source=%s rounds=%d at %s\n",
		status, rec.Source, rec.Rounds, rec.Timestamp.Format("2006-01-02 15:04:05"))
	if rec.Error != "" {
		fmt.Fprintf(w, "[CAL] error: %s\n", rec.Error)
	}
	for _, in := range rec.Instances {
		fmt.Fprintf(w,
			"[CAL] mag[%d] radius=%8.2f offset=(%8.2f %8.2f %8.2f) fitness=%.3f passes=%d conf=%.2f\n",
			in.Instance, in.Radius, in.Offset.X, in.Offset.Y, in.Offset.Z,
			in.Fitness, in.PassCount, in.Quality.Confidence)
	}
}
