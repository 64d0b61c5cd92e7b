// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires sample collection and ellipsoid fitting into a
// calibration controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/magnetometer_calibration/internal/ellipsoid"
	"github.com/relabs-tech/magnetometer_calibration/internal/optimizer"
	"github.com/relabs-tech/magnetometer_calibration/internal/samples"
	"github.com/relabs-tech/magnetometer_calibration/internal/timeutil"
)

// ErrInvalidState is returned when an action is not allowed in the current state.
var ErrInvalidState = errors.New("calibrator: invalid state")

// State is the phase of the calibrator.
type State int

const (
	Idle State = iota
	Collection
	Fitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Collection:
		return "COLLECTION"
	case Fitting:
		return "FIT"
	default:
		return "UNKNOWN"
	}
}

// FitReport is the outcome of one fit.
type FitReport struct {
	Result  *optimizer.Result
	Params  ellipsoid.Params
	Quality ellipsoid.Quality
	// Valid is true when A is positive definite; only then is Correction set.
	Valid      bool
	Correction *ellipsoid.Correction

	Backend   optimizer.Backend
	Guess     InitialGuess
	Timestamp time.Time
	Duration  time.Duration
}

// Status is a point-in-time view for displays.
type Status struct {
	State   State
	Samples int
	Last    samples.Sample
	HasLast bool
	LastFit *FitReport
}

// Calibrator drives the IDLE -> COLLECTION -> IDLE -> FIT -> IDLE cycle.
// It is safe for concurrent use: readings may be ingested from one
// goroutine while another starts a fit or polls Status.
type Calibrator struct {
	opts Options
	logf func(format string, v ...interface{})

	mu        sync.Mutex
	state     State
	collector *samples.Collector
	lastFit   *FitReport
}

// NewCalibrator returns an idle calibrator with an empty buffer.
func NewCalibrator(opts Options) *Calibrator {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Calibrator{
		opts:      opts,
		logf:      logf,
		collector: samples.NewCollector(opts.MaxDataRate, opts.Clock),
	}
}

// StartCollection switches from IDLE to COLLECTION.
func (c *Calibrator) StartCollection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return fmt.Errorf("%w: cannot start collection while %s", ErrInvalidState, c.state)
	}
	c.collector.Start()
	c.state = Collection
	c.logf("calibrator: collection started (%d samples buffered)", c.collector.Len())
	return nil
}

// StopCollection switches from COLLECTION back to IDLE, keeping the samples.
func (c *Calibrator) StopCollection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Collection {
		return fmt.Errorf("%w: cannot stop collection while %s", ErrInvalidState, c.state)
	}
	c.collector.Stop()
	c.state = Idle
	c.logf("calibrator: collection stopped with %d samples", c.collector.Len())
	return nil
}

// ClearCollection drops every buffered sample. Not allowed during a fit.
func (c *Calibrator) ClearCollection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Fitting {
		return fmt.Errorf("%w: cannot clear samples while %s", ErrInvalidState, c.state)
	}
	c.collector.Clear()
	c.logf("calibrator: samples cleared")
	return nil
}

// Ingest offers a reading and reports whether it was buffered. Readings
// outside COLLECTION or above the rate limit are dropped.
func (c *Calibrator) Ingest(s samples.Sample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collector.Offer(s)
}

// Fit runs the optimizer over a snapshot of the buffer. It is only allowed
// from IDLE, blocks until the fit reaches a terminal state and returns to IDLE.
// Cancelling ctx stops the fit between iterations.
func (c *Calibrator) Fit(ctx context.Context) (*FitReport, error) {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot fit while %s", ErrInvalidState, state)
	}
	c.state = Fitting
	points := c.collector.Snapshot()
	c.mu.Unlock()

	report, err := c.fit(ctx, points)

	c.mu.Lock()
	c.state = Idle
	if err == nil {
		c.lastFit = report
	}
	c.mu.Unlock()
	return report, err
}

func (c *Calibrator) fit(ctx context.Context, points []samples.Sample) (*FitReport, error) {
	start := c.opts.Clock.Now()
	model := ellipsoid.NewCostModel(points, c.opts.Perturbation)

	guess := c.opts.InitialGuess
	x0 := ellipsoid.Initial()
	if guess == GuessMinMax {
		if p, ok := ellipsoid.MinMaxEstimate(points); ok {
			x0 = p
		} else {
			c.logf("calibrator: min/max guess unavailable, starting from the unit sphere")
			guess = GuessDefault
		}
	}

	settings := c.opts.Settings
	if c.opts.Verbose {
		next := settings.Recorder
		settings.Recorder = func(it optimizer.Iteration) {
			c.logf("calibrator: iteration %d cost=%.6g step=%.3g", it.Iter, it.Cost, it.StepSize)
			if next != nil {
				next(it)
			}
		}
	}

	c.logf("calibrator: fitting %d samples with %s backend from %s guess", len(points), c.opts.Backend, guess)
	res, err := c.opts.Backend.Minimize(ctx, model, x0.Slice(), settings)
	if err != nil {
		return nil, fmt.Errorf("calibrator: fit: %w", err)
	}

	params, err := ellipsoid.FromSlice(res.X)
	if err != nil {
		return nil, fmt.Errorf("calibrator: fit: %w", err)
	}

	report := &FitReport{
		Result:    res,
		Params:    params,
		Quality:   ellipsoid.Evaluate(points, params),
		Backend:   c.opts.Backend,
		Guess:     guess,
		Timestamp: start,
		Duration:  c.opts.Clock.Since(start),
	}
	if corr, err := params.Correction(); err == nil {
		report.Valid = true
		report.Correction = corr
	}

	c.logf("calibrator: %s", res)
	if !report.Valid {
		c.logf("calibrator: fitted matrix is not positive definite, result is not an ellipsoid")
	}
	return report, nil
}

// Status returns the current state, buffer size, last sample and last fit.
func (c *Calibrator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.collector.Last()
	return Status{
		State:   c.state,
		Samples: c.collector.Len(),
		Last:    last,
		HasLast: ok,
		LastFit: c.lastFit,
	}
}

// State returns the current state.
func (c *Calibrator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
