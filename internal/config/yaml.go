// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spectrallog/internal/log"
	"spectrallog/pkg/bitint"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from the YAML file at path. If path is
// empty it looks for DefaultConfigFile and falls back to the built-in
// defaults when that is absent. A .env file in the working directory is then
// loaded into the environment, ENV_* variables override the result, and the
// final configuration is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DefaultEnvFile, err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations. It does not probe devices or
// files.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not recognized", c.LogLevel))
	}
	check(oneOf(c.LogFormat, "console", "json"), "log_format %q must be console or json", c.LogFormat)

	a := c.Acquisition
	check(oneOf(a.Source, "sim", "wav", "portaudio"), "acquisition.source %q must be sim, wav or portaudio", a.Source)
	check(a.Channel >= 0 && a.Channel <= 255, "acquisition.channel %d is out of range", a.Channel)
	check(a.Rate > 0 && a.Rate <= 500000, "acquisition.rate %d must be in (0, 500000]", a.Rate)
	check(a.Length > 0, "acquisition.length must be positive")
	check(a.MaxRetries >= 0, "acquisition.max_retries must not be negative")
	check(a.Source != "wav" || a.WAVPath != "", "acquisition.wav_path is required for the wav source")

	an := c.Analysis
	check(an.WindowSize >= 4 && bitint.IsPowerOfTwo(an.WindowSize),
		"analysis.window_size %d must be a power of two >= 4", an.WindowSize)
	check(an.FirstBin >= 0 && an.FirstBin <= an.LastBin && an.LastBin < an.WindowSize/2,
		"analysis bins [%d, %d] must lie within [0, %d)", an.FirstBin, an.LastBin, an.WindowSize/2)
	check(a.Length >= an.WindowSize, "acquisition.length %d is shorter than one window", a.Length)
	check(oneOf(an.Strategy, "resample", "retain", "single"), "analysis.strategy %q must be resample, retain or single", an.Strategy)
	check(an.Blocks > 0, "analysis.blocks must be positive")

	s := c.Storage
	check(oneOf(s.Backend, "file", "mem"), "storage.backend %q must be file or mem", s.Backend)
	check(s.Backend != "file" || s.Path != "", "storage.path is required for the file backend")
	check(s.Offset >= 0, "storage.offset must not be negative")
	region := s.Size
	if bitint.IsPowerOfTwo(s.SectorSize) {
		region = bitint.AlignUp(s.Size, s.SectorSize)
	} else {
		check(false, "storage.sector_size %d must be a power of two", s.SectorSize)
	}
	check(s.Size > 0 && s.Offset+4*(an.LastBin-an.FirstBin+1) <= region,
		"storage record at offset %d does not fit a %d byte region", s.Offset, region)

	check(c.Cycle.Interval >= 0, "cycle.interval must not be negative")
	check(c.Cycle.Cycles >= 0, "cycle.cycles must not be negative")

	t := c.Transport
	if t.UDPEnabled {
		check(strings.Contains(t.UDPTargetAddress, ":"),
			"transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress)
		check(t.UDPSendInterval > 0, "transport.udp_send_interval must be positive when UDP is enabled")
	}
	check(t.MQTT.QoS >= 0 && t.MQTT.QoS <= 2, "transport.mqtt.qos %d must be 0, 1 or 2", t.MQTT.QoS)

	check(oneOf(c.Trace.Exporter, "none", "stdout"), "trace.exporter %q must be none or stdout", c.Trace.Exporter)

	return errors.Join(errs...)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are logged and ignored.
func (cfg *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
			log.Debugf("Config: overriding %s from env: %s", key, val)
		}
	}
	num := func(key string, dst *int) {
		if val, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				log.Warnf("Config: ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = n
			log.Debugf("Config: overriding %s from env: %d", key, n)
		}
	}
	flag := func(key string, dst *bool) {
		if val, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				log.Warnf("Config: ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = b
			log.Debugf("Config: overriding %s from env: %v", key, b)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if val, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				log.Warnf("Config: ignoring %s=%q: %v", key, val, err)
				return
			}
			*dst = d
			log.Debugf("Config: overriding %s from env: %s", key, d)
		}
	}

	// ENV_{...}
	// General overrides.
	str("ENV_LOG_LEVEL", &cfg.LogLevel)
	str("ENV_LOG_FORMAT", &cfg.LogFormat)

	// ENV_ACQ_{...}
	str("ENV_ACQ_SOURCE", &cfg.Acquisition.Source)
	num("ENV_ACQ_CHANNEL", &cfg.Acquisition.Channel)
	num("ENV_ACQ_RATE", &cfg.Acquisition.Rate)
	str("ENV_ACQ_WAV_PATH", &cfg.Acquisition.WAVPath)
	num("ENV_ACQ_DEVICE", &cfg.Acquisition.Device)
	str("ENV_ACQ_RECORD_PATH", &cfg.Acquisition.RecordPath)

	// ENV_ANALYSIS_{...}
	str("ENV_ANALYSIS_STRATEGY", &cfg.Analysis.Strategy)
	str("ENV_ANALYSIS_WINDOW_FUNC", &cfg.Analysis.WindowFunc)

	// ENV_STORAGE_{...}
	str("ENV_STORAGE_BACKEND", &cfg.Storage.Backend)
	str("ENV_STORAGE_PATH", &cfg.Storage.Path)

	// ENV_CYCLE_{...}
	dur("ENV_CYCLE_INTERVAL", &cfg.Cycle.Interval)

	// ENV_HTTP_ADDR, ENV_UDP_{...}
	str("ENV_HTTP_ADDR", &cfg.Transport.HTTPAddr)
	flag("ENV_UDP_ENABLED", &cfg.Transport.UDPEnabled)
	str("ENV_UDP_TARGET_ADDRESS", &cfg.Transport.UDPTargetAddress)
	dur("ENV_UDP_SEND_INTERVAL", &cfg.Transport.UDPSendInterval)

	// ENV_MQTT_{...}, ENV_CLICKHOUSE_{...}
	str("ENV_MQTT_BROKER", &cfg.Transport.MQTT.Broker)
	str("ENV_MQTT_USERNAME", &cfg.Transport.MQTT.Username)
	str("ENV_MQTT_PASSWORD", &cfg.Transport.MQTT.Password)
	str("ENV_MQTT_TOPIC", &cfg.Transport.MQTT.Topic)
	str("ENV_CLICKHOUSE_ADDR", &cfg.Transport.ClickHouse.Addr)
	str("ENV_CLICKHOUSE_DATABASE", &cfg.Transport.ClickHouse.Database)
	str("ENV_CLICKHOUSE_USERNAME", &cfg.Transport.ClickHouse.Username)
	str("ENV_CLICKHOUSE_PASSWORD", &cfg.Transport.ClickHouse.Password)

	// ENV_TRACE_EXPORTER
	str("ENV_TRACE_EXPORTER", &cfg.Trace.Exporter)
}
