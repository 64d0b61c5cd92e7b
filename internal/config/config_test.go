// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calibration.config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, 10.0, cfg.MaxDataRate)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.Equal(t, 10, cfg.MaxStepIterations)
	assert.Equal(t, 0.001, cfg.InitialStepSize)
	assert.Equal(t, 1e-6, cfg.Perturbation)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# optimizer
MAX_ITERATIONS=250
  MAX_STEP_ITERATIONS = 12
DIRECTION=BFGS
BACKEND=gonum
INITIAL_GUESS=minmax

MAX_DATA_RATE=25.5
SIM_SEED=-42
SIM_OFFSET_Y=3e1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.MaxIterations)
	assert.Equal(t, 12, cfg.MaxStepIterations)
	assert.Equal(t, "bfgs", cfg.Direction)
	assert.Equal(t, "gonum", cfg.Backend)
	assert.Equal(t, "minmax", cfg.InitialGuess)
	assert.Equal(t, 25.5, cfg.MaxDataRate)
	assert.Equal(t, int64(-42), cfg.SimSeed)
	assert.Equal(t, 30.0, cfg.SimOffsetY)

	// Untouched keys keep their defaults.
	assert.Equal(t, Default().CostTolerance, cfg.CostTolerance)
	assert.Equal(t, Default().SimRate, cfg.SimRate)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing separator", "MAX_ITERATIONS 10\n", "invalid config line 1"},
		{"unknown key", "# c\nFOO=1\n", "config line 2: unknown config key"},
		{"bad int", "MAX_ITERATIONS=ten\n", "invalid MAX_ITERATIONS"},
		{"bad float", "PERTURBATION=tiny\n", "invalid PERTURBATION"},
		{"zero iterations", "MAX_ITERATIONS=0\n", "MAX_ITERATIONS must be at least 1"},
		{"negative perturbation", "PERTURBATION=-1e-6\n", "PERTURBATION must be positive"},
		{"step above cap", "INITIAL_STEP_SIZE=2\n", "must not exceed MAX_STEP_SIZE"},
		{"shrinking growth", "STEP_GROWTH=0.5\n", "STEP_GROWTH must be at least 1"},
		{"unknown guess", "INITIAL_GUESS=random\n", "INITIAL_GUESS"},
		{"unknown direction", "DIRECTION=newton\n", "DIRECTION"},
		{"unknown backend", "BACKEND=scipy\n", "BACKEND"},
		{"negative noise", "SIM_NOISE=-0.1\n", "SIM_NOISE"},
		{"bad warmup", "WARMUP=sometimes\n", "invalid WARMUP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAcceptsParserAliases(t *testing.T) {
	tests := []struct {
		direction, backend string
	}{
		{"gn", "native"},
		{"gaussnewton", "quasinewton"},
		{"Gauss-Newton", "Quasi-Newton"},
		{"auto", "gonum"},
	}
	for _, tt := range tests {
		t.Run(tt.direction+"/"+tt.backend, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, "DIRECTION="+tt.direction+"\nBACKEND="+tt.backend+"\n"))
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(tt.direction), cfg.Direction)
			assert.Equal(t, strings.ToLower(tt.backend), cfg.Backend)
		})
	}
}

func TestLoadWarmup(t *testing.T) {
	assert.True(t, Default().Warmup)

	cfg, err := Load(writeConfig(t, "WARMUP=false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Warmup)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.config"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGlobal(t *testing.T) {
	path := writeConfig(t, "MAX_ITERATIONS=7\n")
	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, 7, Get().MaxIterations)

	// Later calls are ignored.
	require.NoError(t, InitGlobal(""))
	assert.Equal(t, 7, Get().MaxIterations)
}
