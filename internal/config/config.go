// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package config loads the KEY=VALUE calibration configuration file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/magnetometer_calibration/internal/optimizer"
)

// Config holds all application configuration values.
type Config struct {
	// Collection
	MaxDataRate       float64 // samples per second kept in the buffer, <= 0 disables limiting
	CollectionSeconds int

	// Optimizer
	MaxIterations     int
	MaxStepIterations int
	InitialStepSize   float64
	StepGrowth        float64
	MaxStepSize       float64
	FunctionTolerance float64 // relative improvement treated as convergence
	CostTolerance     float64 // per-residual cost treated as an exact fit
	Perturbation      float64 // forward-difference step
	Direction         string  // "auto", "gauss-newton" or "bfgs"
	Backend           string  // "quasi-newton" or "gonum"
	Warmup            bool    // fit center and matrix alone before the joint fit
	InitialGuess      string  // "default" (unit sphere) or "minmax"

	// Simulated magnetometer
	SimSeed          int64
	SimOffsetX       float64
	SimOffsetY       float64
	SimOffsetZ       float64
	SimScaleX        float64
	SimScaleY        float64
	SimScaleZ        float64
	SimSkew          float64
	SimFieldStrength float64
	SimInclination   float64 // degrees
	SimNoise         float64
	SimRate          float64 // Hz
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MaxDataRate:       10,
		CollectionSeconds: 30,

		MaxIterations:     100,
		MaxStepIterations: 10,
		InitialStepSize:   0.001,
		StepGrowth:        10,
		MaxStepSize:       1,
		FunctionTolerance: 1e-10,
		CostTolerance:     1e-12,
		Perturbation:      1e-6,
		Direction:         "auto",
		Backend:           "quasi-newton",
		Warmup:            true,
		InitialGuess:      "default",

		SimSeed:          1,
		SimOffsetX:       12.5,
		SimOffsetY:       -8.0,
		SimOffsetZ:       4.2,
		SimScaleX:        1.08,
		SimScaleY:        0.93,
		SimScaleZ:        1.02,
		SimSkew:          0.03,
		SimFieldStrength: 50,
		SimInclination:   60,
		SimNoise:         0.05,
		SimRate:          50,
	}
}

// Package-level singleton. External code uses InitGlobal to set it once and
// Get to read it; configMu lets readers proceed concurrently.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file on top of Default.
// Keys missing from the file keep their default values.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Collection
	case "MAX_DATA_RATE":
		c.MaxDataRate, err = parseFloat(key, value)
	case "COLLECTION_SECONDS":
		c.CollectionSeconds, err = parseInt(key, value)

	// Optimizer
	case "MAX_ITERATIONS":
		c.MaxIterations, err = parseInt(key, value)
	case "MAX_STEP_ITERATIONS":
		c.MaxStepIterations, err = parseInt(key, value)
	case "INITIAL_STEP_SIZE":
		c.InitialStepSize, err = parseFloat(key, value)
	case "STEP_GROWTH":
		c.StepGrowth, err = parseFloat(key, value)
	case "MAX_STEP_SIZE":
		c.MaxStepSize, err = parseFloat(key, value)
	case "FUNCTION_TOLERANCE":
		c.FunctionTolerance, err = parseFloat(key, value)
	case "COST_TOLERANCE":
		c.CostTolerance, err = parseFloat(key, value)
	case "PERTURBATION":
		c.Perturbation, err = parseFloat(key, value)
	case "DIRECTION":
		c.Direction = strings.ToLower(value)
	case "BACKEND":
		c.Backend = strings.ToLower(value)
	case "WARMUP":
		c.Warmup, err = strconv.ParseBool(value)
		if err != nil {
			err = fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	case "INITIAL_GUESS":
		c.InitialGuess = strings.ToLower(value)

	// Simulated magnetometer
	case "SIM_SEED":
		c.SimSeed, err = strconv.ParseInt(value, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	case "SIM_OFFSET_X":
		c.SimOffsetX, err = parseFloat(key, value)
	case "SIM_OFFSET_Y":
		c.SimOffsetY, err = parseFloat(key, value)
	case "SIM_OFFSET_Z":
		c.SimOffsetZ, err = parseFloat(key, value)
	case "SIM_SCALE_X":
		c.SimScaleX, err = parseFloat(key, value)
	case "SIM_SCALE_Y":
		c.SimScaleY, err = parseFloat(key, value)
	case "SIM_SCALE_Z":
		c.SimScaleZ, err = parseFloat(key, value)
	case "SIM_SKEW":
		c.SimSkew, err = parseFloat(key, value)
	case "SIM_FIELD_STRENGTH":
		c.SimFieldStrength, err = parseFloat(key, value)
	case "SIM_INCLINATION":
		c.SimInclination, err = parseFloat(key, value)
	case "SIM_NOISE":
		c.SimNoise, err = parseFloat(key, value)
	case "SIM_RATE":
		c.SimRate, err = parseFloat(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks value ranges.
func (c *Config) validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("MAX_ITERATIONS must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxStepIterations < 1 {
		return fmt.Errorf("MAX_STEP_ITERATIONS must be at least 1, got %d", c.MaxStepIterations)
	}
	positive := []struct {
		key string
		val float64
	}{
		{"INITIAL_STEP_SIZE", c.InitialStepSize},
		{"STEP_GROWTH", c.StepGrowth},
		{"MAX_STEP_SIZE", c.MaxStepSize},
		{"FUNCTION_TOLERANCE", c.FunctionTolerance},
		{"COST_TOLERANCE", c.CostTolerance},
		{"PERTURBATION", c.Perturbation},
		{"SIM_FIELD_STRENGTH", c.SimFieldStrength},
		{"SIM_RATE", c.SimRate},
	}
	for _, p := range positive {
		if !(p.val > 0) {
			return fmt.Errorf("%s must be positive, got %g", p.key, p.val)
		}
	}
	if c.StepGrowth < 1 {
		return fmt.Errorf("STEP_GROWTH must be at least 1, got %g", c.StepGrowth)
	}
	if c.InitialStepSize > c.MaxStepSize {
		return fmt.Errorf("INITIAL_STEP_SIZE (%g) must not exceed MAX_STEP_SIZE (%g)", c.InitialStepSize, c.MaxStepSize)
	}
	if c.SimNoise < 0 {
		return fmt.Errorf("SIM_NOISE must not be negative, got %g", c.SimNoise)
	}
	if c.CollectionSeconds < 1 {
		return fmt.Errorf("COLLECTION_SECONDS must be at least 1, got %d", c.CollectionSeconds)
	}
	switch c.InitialGuess {
	case "default", "minmax":
	default:
		return fmt.Errorf("INITIAL_GUESS must be \"default\" or \"minmax\", got %q", c.InitialGuess)
	}
	if _, err := optimizer.ParseDirection(c.Direction); err != nil {
		return fmt.Errorf("DIRECTION: %w", err)
	}
	if _, err := optimizer.ParseBackend(c.Backend); err != nil {
		return fmt.Errorf("BACKEND: %w", err)
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Only the first
// call has an effect. An empty path selects Default.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
