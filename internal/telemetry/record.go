// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"time"

	"github.com/relabs-tech/magcal/internal/magcal"
)

// RecordVersion is bumped when the stored layout changes.
const RecordVersion = 1

// Record is the calibration outcome as written to disk and published on MQTT.
type Record struct {
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Error     string    `json:"error,omitempty"`
	magcal.Result
}

// NewRecord wraps a session result. err is the error Run returned, if any.
func NewRecord(source string, res magcal.Result, err error, now time.Time) Record {
	r := Record{
		Version:   RecordVersion,
		Timestamp: now.UTC(),
		Source:    source,
		Result:    res,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
