// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"spectrallog/internal/adc"
	"spectrallog/internal/dispatch"
	"spectrallog/internal/persist"
	"spectrallog/internal/spectrum"

	"github.com/spf13/cobra"
)

func newDumpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the averages held in storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			var c closers
			defer c.Close()

			loop := dispatch.NewLoop(0)
			store, err := openStore(loop, cfg.Storage, &c)
			if err != nil {
				return err
			}

			an := cfg.Analysis
			avgs, err := persist.Load(cmd.Context(), loop, store, cfg.Storage.Offset, an.LastBin-an.FirstBin+1)
			w := cmd.OutOrStdout()
			if errors.Is(err, persist.ErrErased) {
				fmt.Fprintln(w, "no record stored")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "%-5s %12s %14s\n", "BIN", "FREQ (Hz)", "AVERAGE")
			for i, v := range avgs {
				k := an.FirstBin + i
				freq := spectrum.BinFrequency(k, an.WindowSize, float64(cfg.Acquisition.Rate))
				fmt.Fprintf(w, "%-5d %12.1f %14.3f\n", k, freq, v)
			}
			return nil
		},
	}
}

func newSampleCommand(opts *options) *cobra.Command {
	var channel int
	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Take one acquisition and print the raw samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("channel") {
				opts.cfg.Acquisition.Channel = channel
				if err := opts.cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}
			a := opts.cfg.Acquisition
			var c closers
			defer c.Close()

			loop := dispatch.NewLoop(0)
			drv, err := openDriver(loop, a, &c)
			if err != nil {
				return err
			}
			acq, err := adc.NewAcquirer(loop, drv, acquirerConfig(a))
			if err != nil {
				return err
			}

			buf := make([]uint16, a.Length)
			if err := acq.Acquire(cmd.Context(), buf); err != nil {
				return err
			}

			// One analysis window per line.
			w := cmd.OutOrStdout()
			row := opts.cfg.Analysis.WindowSize
			for i, v := range buf {
				sep := " "
				if (i+1)%row == 0 || i == len(buf)-1 {
					sep = "\n"
				}
				fmt.Fprintf(w, "%4d%s", v, sep)
			}
			return nil
		},
	}
	sampleCmd.Flags().IntVar(&channel, "channel", 0, "Analog channel to sample")
	return sampleCmd
}

func newDevicesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := adc.GetDevices()
			if err != nil {
				return err
			}
			adc.ListDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}
