// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"spectrallog/internal/adc"
	"spectrallog/internal/average"
	"spectrallog/internal/config"
	"spectrallog/internal/cycle"
	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/persist"
	"spectrallog/internal/server"
	"spectrallog/internal/spectrum"
	"spectrallog/internal/storage"
	"spectrallog/internal/trace"
	"spectrallog/internal/transport"
	"spectrallog/internal/transport/udp"
	"spectrallog/internal/tui"

	"github.com/spf13/cobra"
)

type runFlags struct {
	resume   bool
	cycles   int
	interval time.Duration
	source   string
	wavPath  string
	strategy string
	httpAddr string
	record   string
	tui      bool
}

func newRunCommand(opts *options) *cobra.Command {
	flags := &runFlags{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the measurement loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd, opts.cfg)
			if err := opts.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runPipeline(cmd.Context(), opts.cfg, flags.resume, flags.tui)
		},
	}

	f := runCmd.Flags()
	f.BoolVar(&flags.resume, "resume", false, "Seed the averages from the record already in storage")
	f.IntVarP(&flags.cycles, "cycles", "n", 0, "Stop after this many cycles (0 runs until interrupted)")
	f.DurationVarP(&flags.interval, "interval", "i", config.DefaultInterval, "Pause between cycles")
	f.StringVarP(&flags.source, "source", "s", config.DefaultSource, "Sample source: sim, wav or portaudio")
	f.StringVar(&flags.wavPath, "wav", "", "WAV file played as the analog input (implies --source wav)")
	f.StringVar(&flags.strategy, "strategy", config.DefaultStrategy, "Acquisition strategy: resample, retain or single")
	f.StringVar(&flags.httpAddr, "http", "", "Serve health, metrics, snapshots and the live stream on this address")
	f.StringVarP(&flags.record, "record", "r", "", "Record every acquired block to this WAV file")
	f.BoolVar(&flags.tui, "tui", false, "Show the running averages in a terminal monitor")
	return runCmd
}

// apply copies the flags the user set over the loaded configuration.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("cycles") {
		cfg.Cycle.Cycles = f.cycles
	}
	if changed("interval") {
		cfg.Cycle.Interval = f.interval
	}
	if changed("source") {
		cfg.Acquisition.Source = f.source
	}
	if changed("wav") {
		cfg.Acquisition.WAVPath = f.wavPath
		cfg.Acquisition.Source = "wav"
	}
	if changed("strategy") {
		cfg.Analysis.Strategy = f.strategy
	}
	if changed("http") {
		cfg.Transport.HTTPAddr = f.httpAddr
	}
	if changed("record") {
		cfg.Acquisition.RecordPath = f.record
	}
}

// runPipeline wires every component from cfg and drives the cycle until ctx
// ends. Cancellation is a clean exit.
func runPipeline(ctx context.Context, cfg *config.Config, resume, monitor bool) error {
	var c closers
	defer func() {
		if cerr := c.Close(); cerr != nil {
			log.Warnf("Run: cleanup: %v", cerr)
		}
	}()

	if err := trace.Initialize(ctx, trace.Config{
		Exporter:     cfg.Trace.Exporter,
		SamplingRate: cfg.Trace.SamplingRate,
	}); err != nil {
		return err
	}
	c.add(func() error { return trace.Shutdown(context.Background()) })

	loop := dispatch.NewLoop(0)

	drv, err := openDriver(loop, cfg.Acquisition, &c)
	if err != nil {
		return err
	}
	acq, err := adc.NewAcquirer(loop, drv, acquirerConfig(cfg.Acquisition))
	if err != nil {
		return err
	}

	an := cfg.Analysis
	windowFn, err := spectrum.ParseWindowFunc(an.WindowFunc)
	if err != nil {
		return err
	}
	xf, err := spectrum.New(an.WindowSize, windowFn)
	if err != nil {
		return err
	}
	avg, err := average.NewState(an.FirstBin, an.LastBin)
	if err != nil {
		return err
	}

	store, err := openStore(loop, cfg.Storage, &c)
	if err != nil {
		return err
	}
	if resume {
		if err := restore(ctx, loop, store, cfg.Storage.Offset, avg); err != nil {
			return err
		}
	}
	coord, err := persist.NewCoordinator(loop, store, cfg.Storage.Offset, avg.Tracked())
	if err != nil {
		return err
	}

	latest := transport.NewLatest()
	var ws *transport.WebSocketTransport
	var stream transport.Transport
	if cfg.Transport.HTTPAddr != "" {
		ws = transport.NewWebSocketTransport()
		stream = ws
	}
	sink, err := openSinks(cfg.Transport, latest, stream)
	if err != nil {
		if ws != nil {
			ws.Close()
		}
		return err
	}
	c.add(sink.Close)

	strategy, err := cycle.ParseStrategy(an.Strategy)
	if err != nil {
		return err
	}
	driver, err := cycle.New(loop, acq, xf, avg, coord, sink, cycle.Config{
		Strategy: strategy,
		Blocks:   an.Blocks,
		Interval: cfg.Cycle.Interval,
		Cycles:   cfg.Cycle.Cycles,
	})
	if err != nil {
		return err
	}

	if cfg.Transport.HTTPAddr != "" {
		srv := server.New(cfg.Transport.HTTPAddr, latest, ws, func() string {
			return driver.State().String()
		})
		srv.Start()
		c.add(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, latest)
		if err != nil {
			sender.Close()
			return err
		}
		pub.Start()
		c.add(pub.Close)
	}

	if monitor {
		err = runWithMonitor(ctx, cfg, driver, latest)
	} else {
		err = driver.Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		log.Infof("Run: interrupted after %d cycles", driver.Cycles())
		return nil
	}
	return err
}

// runWithMonitor drives the cycle on its own goroutine while the terminal
// monitor owns the main one. Quitting the monitor stops the cycle. The
// monitor owns the terminal, so logging is silenced until it exits.
func runWithMonitor(ctx context.Context, cfg *config.Config, driver *cycle.Driver, latest *transport.Latest) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Init(cfg.LogFormat, io.Discard)
	defer log.Init(cfg.LogFormat, os.Stderr)

	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	merr := tui.StartMonitor(ctx, latest, func() string { return driver.State().String() }, tui.MonitorOptions{
		WindowSize: cfg.Analysis.WindowSize,
		Rate:       float64(cfg.Acquisition.Rate),
	})
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return merr
}

// restore seeds avg from the persisted record. An erased region leaves the
// averages untouched.
func restore(ctx context.Context, loop *dispatch.Loop, store storage.Store, offset int, avg *average.State) error {
	avgs, err := persist.Load(ctx, loop, store, offset, avg.Tracked())
	if errors.Is(err, persist.ErrErased) {
		log.Infof("Run: no record to resume from, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load record for resume: %w", err)
	}
	log.Infof("Run: resuming from %v", avgs)
	return avg.Restore(avgs)
}
