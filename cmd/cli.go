// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"

	"spectrallog/internal/config"
	"spectrallog/internal/log"
	"spectrallog/pkg/build"

	"github.com/spf13/cobra"
)

// options are the values shared by every subcommand once the configuration
// has been loaded.
type options struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

// NewRootCommand builds the command tree. Subcommands run with the context
// passed to ExecuteContext.
func NewRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to the YAML configuration file (default "+config.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "",
		"Override the log format (console, json)")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newDumpCommand(opts),
		newSampleCommand(opts),
		newDevicesCommand(opts),
	)
	return rootCmd
}

// load reads the configuration, applies the global flags and sets up
// logging.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}

	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	log.Init(cfg.LogFormat, os.Stderr)
	log.SetLevel(level)

	o.cfg = cfg
	return nil
}
