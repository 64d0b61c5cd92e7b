// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/magfit/main.go
//
// Magnetometer hard/soft-iron calibration by full ellipsoid fit.
//
// Collects readings from the simulated magnetometer at the configured
// data rate, fits (x-c)ᵀA(x-c) = 1 to the buffered samples and prints the
// hard-iron offset c, the soft-iron correction W = A^(1/2) and fit quality.
//
// Run:
//
//	go run ./cmd/magfit -config magfit.config -seconds 30
//
// Notes:
//   - -fast replays simulated time instead of waiting in real time.
//   - Ctrl-C stops collection early, or stops a running fit between iterations.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/relabs-tech/magnetometer_calibration/internal/app"
	"github.com/relabs-tech/magnetometer_calibration/internal/config"
	"github.com/relabs-tech/magnetometer_calibration/internal/sensors"
	"github.com/relabs-tech/magnetometer_calibration/internal/timeutil"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults are used when empty)")
	seconds := flag.Int("seconds", 0, "Collection duration in seconds (overrides COLLECTION_SECONDS)")
	fast := flag.Bool("fast", false, "Run the simulation without waiting in real time")
	interactive := flag.Bool("interactive", false, "Wait for ENTER before collecting")
	verbose := flag.Bool("v", false, "Log every optimizer iteration")
	flag.Parse()

	fmt.Println("=== Magnetometer Ellipsoid Calibration ===")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	duration := time.Duration(cfg.CollectionSeconds) * time.Second
	if *seconds > 0 {
		duration = time.Duration(*seconds) * time.Second
	}

	opts, err := app.OptionsFromConfig(cfg)
	if err != nil {
		fatal(err)
	}
	opts.Verbose = *verbose

	src, err := sensors.NewSimulatedMagnetometer(app.SimConfigFromConfig(cfg))
	if err != nil {
		fatal(err)
	}

	var manual *timeutil.MockClock
	if *fast {
		manual = timeutil.NewMockClock(time.Now())
		opts.Clock = manual
	}
	cal := app.NewCalibrator(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Rotate the device through all orientations (3D).")
	fmt.Println("Move away from large metal objects and power cables if possible.")
	if *interactive {
		waitEnter(bufio.NewReader(os.Stdin), fmt.Sprintf("Press ENTER to start magnetometer capture (%s)...", duration))
	}

	if err := cal.StartCollection(); err != nil {
		fatal(err)
	}
	collect(ctx, cal, src, manual, duration)
	if err := cal.StopCollection(); err != nil {
		fatal(err)
	}

	st := cal.Status()
	fmt.Printf("\n[COLLECT] %d samples buffered (max %.1f Hz)\n", st.Samples, cfg.MaxDataRate)
	if ctx.Err() != nil {
		fmt.Println("Collection interrupted; press Ctrl-C again to abort the fit.")
		stop()
		ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
	}

	report, err := cal.Fit(ctx)
	if err != nil {
		fatal(err)
	}
	printReport(report)

	if truth, err := src.Truth(); err == nil {
		c := truth.Center()
		fmt.Printf("[TRUE] offset X=%.4f Y=%.4f Z=%.4f\n", c.X, c.Y, c.Z)
	}
}

// collect feeds readings to the calibrator until duration has elapsed or ctx is done.
func collect(ctx context.Context, cal *app.Calibrator, src *sensors.SimulatedMagnetometer, manual *timeutil.MockClock, duration time.Duration) {
	interval := src.Interval()
	readings := int(duration / interval)
	every := max(1, int(time.Second/interval))

	var tick <-chan time.Time
	if manual == nil {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < readings; i++ {
		if manual != nil {
			if ctx.Err() != nil {
				return
			}
			manual.Advance(interval)
		} else {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}

		s, err := src.Next()
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nWARN: read failed: %v\n", err)
			continue
		}
		cal.Ingest(s)

		if i%every == 0 {
			st := cal.Status()
			fmt.Printf("\r[COLLECT] t=%5.1fs samples=%4d last=(%8.3f, %8.3f, %8.3f)",
				src.Elapsed().Seconds(), st.Samples, s.X, s.Y, s.Z)
		}
	}
}

func printReport(r *app.FitReport) {
	res := r.Result
	fmt.Printf("[FIT] backend=%s direction=%s guess=%s\n", r.Backend, res.Direction, r.Guess)
	fmt.Printf("[FIT] state=%s iterations=%d evaluations=%d duration=%s\n",
		res.State, res.Iterations, res.Evaluations, r.Duration.Round(time.Millisecond))
	fmt.Printf("[FIT] cost %.6g -> %.6g | rms residual=%.6g max=%.6g\n",
		res.InitialCost, res.Cost, r.Quality.RMS, r.Quality.MaxAbsResidual)

	c := r.Params.Center()
	fmt.Printf("[CAL] offset X=%.4f Y=%.4f Z=%.4f\n", c.X, c.Y, c.Z)
	fmt.Printf("[CAL] semi-axes %.4f %.4f %.4f | axis ratio=%.4f\n",
		r.Quality.SemiAxes[0], r.Quality.SemiAxes[1], r.Quality.SemiAxes[2], r.Quality.AxisRatio)

	if !r.Valid {
		fmt.Println("[CAL] WARNING: fitted surface is not an ellipsoid; collect more varied orientations")
		return
	}
	w := r.Correction.SoftIron
	fmt.Println("[CAL] soft-iron correction (corrected = W * (raw - offset)):")
	for i := 0; i < 3; i++ {
		fmt.Printf("      [% .6e % .6e % .6e]\n", w.At(i, 0), w.At(i, 1), w.At(i, 2))
	}
}

func waitEnter(in *bufio.Reader, prompt string) {
	fmt.Print(prompt)
	_, _ = in.ReadString('\n')
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
