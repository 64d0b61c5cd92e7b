// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package samples holds the magnetometer readings collected for a calibration.
//
// The types here are not safe for concurrent use. A single writer appends
// readings and a fit works on a Snapshot, which never changes afterwards.
package samples

// Buffer is an append-only ordered collection of samples.
// Insertion order is arrival order; the last sample is the current one.
// There is no capacity limit and no eviction: samples only go away on Clear.
type Buffer struct {
	points []Sample
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds s to the end of the buffer.
func (b *Buffer) Append(s Sample) {
	b.points = append(b.points, s)
}

// Clear removes every sample in one step.
func (b *Buffer) Clear() {
	b.points = nil
}

// Snapshot returns a copy of the samples in arrival order.
// Later appends or clears do not affect the returned slice.
func (b *Buffer) Snapshot() []Sample {
	out := make([]Sample, len(b.points))
	copy(out, b.points)
	return out
}

// Len returns the number of samples held.
func (b *Buffer) Len() int {
	return len(b.points)
}

// Last returns the most recently appended sample.
// ok is false when the buffer is empty.
func (b *Buffer) Last() (s Sample, ok bool) {
	if len(b.points) == 0 {
		return Sample{}, false
	}
	return b.points[len(b.points)-1], true
}
