// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

// Allocator provides the buffers a session needs. A nil or short result
// is treated as an allocation failure.
type Allocator interface {
	Contexts(n int) []Context
	Scratch(n int) []float64
}

// HeapAllocator allocates from the Go heap and never fails.
type HeapAllocator struct{}

func (HeapAllocator) Contexts(n int) []Context { return make([]Context, n) }

func (HeapAllocator) Scratch(n int) []float64 { return make([]float64, n) }
