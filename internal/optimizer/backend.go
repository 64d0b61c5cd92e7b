// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package optimizer

import (
	"context"
	"fmt"
	"strings"
)

// Backend selects the minimization engine.
type Backend int

const (
	// BackendQuasiNewton is the bounded quasi-Newton iteration of Minimize.
	BackendQuasiNewton Backend = iota
	// BackendGonum delegates to gonum.org/v1/gonum/optimize.
	BackendGonum
)

func (b Backend) String() string {
	if b == BackendGonum {
		return "gonum"
	}
	return "quasi-newton"
}

// ParseBackend accepts quasi-newton (or native) and gonum.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "quasi-newton", "quasinewton", "native":
		return BackendQuasiNewton, nil
	case "gonum":
		return BackendGonum, nil
	}
	return BackendQuasiNewton, fmt.Errorf("unknown backend %q", s)
}

// Minimize runs obj through the selected backend.
func (b Backend) Minimize(ctx context.Context, obj Objective, x0 []float64, settings Settings) (*Result, error) {
	if b == BackendGonum {
		return MinimizeGonum(ctx, obj, x0, settings)
	}
	return Minimize(ctx, obj, x0, settings)
}
