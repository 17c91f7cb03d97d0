// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import "fmt"

// Stage identifies the kind of progress event.
type Stage string

const (
	StageCollecting Stage = "collecting"
	StageUnhealthy  Stage = "unhealthy"
	StageSampled    Stage = "sampled"
	StageSampleDone Stage = "sampling_over"
	StageFitted     Stage = "fitted"
	StagePassed     Stage = "passed"
	StageComplete   Stage = "complete"
	StageFault      Stage = "fault"
	StageFailed     Stage = "failed"
	StageSucceeded  Stage = "succeeded"
)

// Progress is one human-readable event emitted while a session runs.
// Instance is -1 for session-wide events.
type Progress struct {
	Stage     Stage   `json:"stage"`
	Instance  int     `json:"instance"`
	Round     int     `json:"round"`
	Samples   int     `json:"samples"`
	Radius    float64 `json:"radius"`
	Offset    Vector3 `json:"offset"`
	Fitness   float64 `json:"fitness"`
	PassCount int     `json:"pass_count"`
	Error     string  `json:"error,omitempty"`
}

func (p Progress) String() string {
	switch p.Stage {
	case StageCollecting:
		return fmt.Sprintf("round %d: collecting samples", p.Round)
	case StageUnhealthy:
		return fmt.Sprintf("mag[%d] not healthy", p.Instance)
	case StageSampled:
		return fmt.Sprintf("mag[%d] sample %d/%d", p.Instance, p.Samples, NumSamples)
	case StageSampleDone:
		return fmt.Sprintf("round %d: sampling over", p.Round)
	case StageFitted:
		return fmt.Sprintf("mag[%d] fitness %.3f radius %.2f offsets %.2f %.2f %.2f",
			p.Instance, p.Fitness, p.Radius, p.Offset.X, p.Offset.Y, p.Offset.Z)
	case StagePassed:
		return fmt.Sprintf("mag[%d] passed %d/%d", p.Instance, p.PassCount, PassesToComplete)
	case StageComplete:
		return fmt.Sprintf("mag[%d] calibration complete, radius %.2f offsets %.2f %.2f %.2f",
			p.Instance, p.Radius, p.Offset.X, p.Offset.Y, p.Offset.Z)
	case StageFault:
		return fmt.Sprintf("mag[%d] critical fault: %s", p.Instance, p.Error)
	case StageFailed:
		if p.Error != "" {
			return fmt.Sprintf("calibration failed after %d rounds: %s", p.Round, p.Error)
		}
		return fmt.Sprintf("calibration failed after %d rounds", p.Round)
	case StageSucceeded:
		return fmt.Sprintf("calibration succeeded after %d rounds", p.Round)
	}
	return string(p.Stage)
}

// Reporter receives progress events. Report is called synchronously from
// the session goroutine.
type Reporter interface {
	Report(p Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(p Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

type discardReporter struct{}

func (discardReporter) Report(Progress) {}

func progressFor(stage Stage, round int, c *Context) Progress {
	p := Progress{
		Stage:     stage,
		Instance:  c.Instance,
		Round:     round,
		Samples:   c.Count,
		Radius:    c.Radius(),
		Offset:    c.Offset(),
		Fitness:   c.Fitness,
		PassCount: c.PassCount,
	}
	if c.Err != nil {
		p.Error = c.Err.Error()
	}
	return p
}
