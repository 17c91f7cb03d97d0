// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned when the allocator cannot provide a buffer.
	ErrAllocation = errors.New("magcal: buffer allocation failed")
	// ErrSingularMatrix is returned when the damped normal matrix has a zero determinant.
	ErrSingularMatrix = errors.New("magcal: normal matrix is singular")
	// ErrBudgetExhausted is returned when the round limit is reached before every instance completes.
	ErrBudgetExhausted = errors.New("magcal: round budget exhausted")
	// ErrSensorStalled is returned when collection exceeds its pass limit.
	ErrSensorStalled = errors.New("magcal: sample collection stalled")
	// ErrNoInstances is returned when the sensor reports no magnetometers.
	ErrNoInstances = errors.New("magcal: no magnetometer instances")
)

// FaultError reports a critical fault raised while fitting one instance.
// It aborts the whole session.
type FaultError struct {
	Instance int
	Err      error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("magcal: instance %d: critical fault: %v", e.Instance, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }
