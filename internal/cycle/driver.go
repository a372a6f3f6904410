// SPDX-License-Identifier: MIT

/*
Package cycle runs the measurement loop: acquire a block of samples, fold the
spectrum of every window into the running per-bin averages, persist the
averages and wait for the next cycle.

Everything here runs on the goroutine that calls Run. Driver completions and
timers come back through the dispatch loop, so the sample buffer and the
average state are never shared.

Failures are best effort. A failed acquisition ends the acquisition phase and
no further block of that cycle is analyzed, but the averages as they stand
are still persisted. A persist that fails to
issue or complete is logged and the next cycle proceeds. Only a malformed
write (bad offset or record size) stops the loop, leaving the driver in the
Failed state.
*/
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"spectrallog/internal/adc"
	"spectrallog/internal/average"
	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/metrics"
	"spectrallog/internal/persist"
	"spectrallog/internal/retcode"
	"spectrallog/internal/spectrum"
	"spectrallog/internal/trace"
	"spectrallog/internal/transport"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBlocks   = 4
	DefaultInterval = 500 * time.Millisecond
)

// ErrFailed is returned by Cycle once the driver has stopped on a fatal error.
var ErrFailed = errors.New("cycle: driver has failed")

// Config holds the loop parameters.
type Config struct {
	Strategy Strategy
	Blocks   int           // acquisitions per cycle, 0 selects DefaultBlocks
	Interval time.Duration // pause after every cycle
	Cycles   int           // Run stops after this many cycles, 0 runs forever
}

// Driver owns the pipeline components and the buffers they share.
type Driver struct {
	cfg   Config
	loop  *dispatch.Loop
	acq   *adc.Acquirer
	xf    *spectrum.Transformer
	avg   *average.State
	coord *persist.Coordinator
	sink  transport.Transport

	buf    []uint16
	window []int32
	bins   []int32
	avgs   []float32
	counts []uint64

	runID  string
	cycles uint64
	state  atomic.Int32
	err    error
}

// New wires a driver. sink may be nil. The acquirer's length fixes the size
// of the sample buffer, which must hold at least one window.
func New(loop *dispatch.Loop, acq *adc.Acquirer, xf *spectrum.Transformer, avg *average.State,
	coord *persist.Coordinator, sink transport.Transport, cfg Config) (*Driver, error) {
	if cfg.Blocks <= 0 {
		cfg.Blocks = DefaultBlocks
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("cycle interval must not be negative, got %s", cfg.Interval)
	}
	length := acq.Config().Length
	if spectrum.Windows(length, xf.Size()) == 0 {
		return nil, fmt.Errorf("acquisition length %d holds no %d-sample window", length, xf.Size())
	}
	if avg.Last >= xf.Bins() {
		return nil, fmt.Errorf("tracked bin %d is beyond the %d bins of a %d-point transform",
			avg.Last, xf.Bins(), xf.Size())
	}

	if acq.OnRetry == nil {
		acq.OnRetry = func(error, time.Duration) { metrics.AcquisitionRetriesTotal.Inc() }
	}

	d := &Driver{
		cfg:    cfg,
		loop:   loop,
		acq:    acq,
		xf:     xf,
		avg:    avg,
		coord:  coord,
		sink:   sink,
		buf:    make([]uint16, length),
		window: make([]int32, xf.Size()),
		bins:   make([]int32, xf.Bins()),
		avgs:   make([]float32, avg.Tracked()),
		counts: make([]uint64, avg.Tracked()),
		runID:  uuid.NewString(),
	}
	d.setState(Idle)
	return d, nil
}

// State returns the current state. It is safe to call from any goroutine.
func (d *Driver) State() State { return State(d.state.Load()) }

// RunID identifies this process's run in published snapshots.
func (d *Driver) RunID() string { return d.runID }

// Cycles returns the number of cycles started.
func (d *Driver) Cycles() uint64 { return d.cycles }

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	metrics.CycleState.Set(float64(s))
}

// Run repeats Cycle until ctx ends, a fatal error occurs or the configured
// number of cycles has run. It returns ctx.Err(), the fatal error or nil
// respectively.
func (d *Driver) Run(ctx context.Context) error {
	log.Infof("Cycle: run %s started (%s, %d blocks, every %s)",
		d.runID, d.cfg.Strategy, d.cfg.Blocks, d.cfg.Interval)
	for n := 0; d.cfg.Cycles == 0 || n < d.cfg.Cycles; n++ {
		if err := d.Cycle(ctx); err != nil {
			return err
		}
	}
	log.Infof("Cycle: run %s finished after %d cycles", d.runID, d.cycles)
	return nil
}

// Cycle runs one iteration: acquisition and analysis, persistence, snapshot
// publication and pacing.
func (d *Driver) Cycle(ctx context.Context) error {
	if d.State() == Failed {
		return fmt.Errorf("%w: %w", ErrFailed, d.err)
	}
	d.cycles++

	ctx, span := trace.StartSpan(ctx, "cycle",
		attribute.String("run_id", d.runID),
		attribute.Int64("cycle", int64(d.cycles)),
		attribute.String("strategy", d.cfg.Strategy.String()),
	)
	defer span.End()

	acqFailed, err := d.measure(ctx)
	if err != nil {
		trace.RecordError(span, err)
		return err
	}
	span.SetAttributes(attribute.Bool("acquisition_failed", acqFailed))

	persisted, err := d.persist(ctx)
	if err != nil {
		trace.RecordError(span, err)
		return err
	}

	d.publish(acqFailed, persisted)
	metrics.CyclesTotal.Inc()

	d.setState(Pacing)
	if err := d.loop.Delay(ctx, d.cfg.Interval); err != nil {
		return err
	}
	d.setState(Idle)
	return nil
}

// measure performs the acquisitions and analysis passes of the strategy. It
// reports whether an acquisition failed; the returned error is only ever the
// context's.
func (d *Driver) measure(ctx context.Context) (bool, error) {
	acquisitions, passes := d.cfg.Blocks, d.cfg.Blocks
	if d.cfg.Strategy == Single {
		acquisitions, passes = 1, 1
	}

	for i := 0; i < acquisitions; i++ {
		if err := d.acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return true, nil
		}
		if d.cfg.Strategy == Retain {
			d.analyze(ctx, 1)
		}
	}
	if d.cfg.Strategy != Retain {
		d.analyze(ctx, passes)
	}
	return false, nil
}

func (d *Driver) acquire(ctx context.Context) error {
	d.setState(Acquiring)
	ctx, span := trace.StartSpan(ctx, "acquire")
	defer span.End()

	err := d.acq.Acquire(ctx, d.buf)
	if err != nil {
		trace.RecordError(span, err)
		if ctx.Err() == nil {
			metrics.AcquisitionErrorsTotal.WithLabelValues(retcode.Of(err).String()).Inc()
			log.Warnf("Cycle: %v", err)
		}
		return err
	}
	metrics.AcquisitionsTotal.Inc()
	return nil
}

// analyze folds every window of the sample buffer into the averages, passes
// times over.
func (d *Driver) analyze(ctx context.Context, passes int) {
	d.setState(Transforming)
	_, span := trace.StartSpan(ctx, "transform", attribute.Int("passes", passes))
	defer span.End()

	windows := spectrum.Windows(len(d.buf), d.xf.Size())
	for p := 0; p < passes; p++ {
		for k := 0; k < windows; k++ {
			spectrum.Load(d.window, d.buf, k)
			d.xf.Transform(d.window, d.bins)
			d.avg.Observe(d.bins)
		}
	}
	metrics.WindowsTotal.Add(float64(windows * passes))
}

// persist writes the current averages. Non-fatal failures are logged and
// reported as not persisted; a fatal one moves the driver to Failed.
func (d *Driver) persist(ctx context.Context) (bool, error) {
	d.setState(Persisting)
	ctx, span := trace.StartSpan(ctx, "persist")
	defer span.End()

	d.avgs = d.avg.Averages(d.avgs)
	start := time.Now()
	err := d.coord.Persist(ctx, d.avgs)
	if err == nil {
		metrics.PersistDuration.Observe(time.Since(start).Seconds())
		return true, nil
	}
	trace.RecordError(span, err)

	var fatal *persist.FatalError
	if errors.As(err, &fatal) {
		d.err = err
		d.setState(Failed)
		log.Errorf("Cycle: stopping on fatal persist error: %v", err)
		return false, err
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	stage := "unknown"
	var perr *persist.PersistError
	if errors.As(err, &perr) {
		stage = string(perr.Stage)
	}
	metrics.PersistErrorsTotal.WithLabelValues(stage).Inc()
	log.Errorf("Cycle: %v", err)
	return false, nil
}

func (d *Driver) publish(acqFailed, persisted bool) {
	d.counts = d.avg.Counts(d.counts)
	metrics.SetBinAverages(d.avg.First, d.avgs)
	if d.sink == nil {
		return
	}

	s := &transport.Snapshot{
		RunID:             d.runID,
		Cycle:             d.cycles,
		Timestamp:         time.Now().UTC(),
		FirstBin:          d.avg.First,
		Averages:          d.avgs,
		Counts:            d.counts,
		AcquisitionFailed: acqFailed,
		Persisted:         persisted,
	}
	if err := d.sink.Send(s); err != nil {
		metrics.TransportErrorsTotal.Inc()
		log.Warnf("Cycle: failed to publish snapshot %d: %v", d.cycles, err)
	}
}
