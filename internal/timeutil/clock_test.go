// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 7, 17, 31, 29, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, c.Since(start))

	c.Set(start.Add(time.Hour))
	assert.Equal(t, time.Hour, c.Since(start))
}

func TestRealClockMonotonic(t *testing.T) {
	var c Clock = RealClock{}
	t0 := c.Now()
	assert.GreaterOrEqual(t, c.Since(t0), time.Duration(0))
}
