// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "spectrallog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Acquisition.Rate != DefaultRate || cfg.Acquisition.Length != DefaultLength {
		t.Errorf("expected board defaults, got rate %d length %d", cfg.Acquisition.Rate, cfg.Acquisition.Length)
	}
	if cfg.Analysis.FirstBin != 3 || cfg.Analysis.LastBin != 7 {
		t.Errorf("expected bins 3..7, got %d..%d", cfg.Analysis.FirstBin, cfg.Analysis.LastBin)
	}
	if cfg.Cycle.Interval != 500*time.Millisecond {
		t.Errorf("expected 500ms interval, got %s", cfg.Cycle.Interval)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
acquisition:
  source: sim
  rate: 100000
  signal:
    waveform: zero
analysis:
  strategy: retain
  first_bin: 1
  last_bin: 2
cycle:
  interval: 2s
transport:
  udp_enabled: true
  udp_target_address: 10.0.0.1:9999
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Acquisition.Rate != 100000 {
		t.Errorf("rate = %d, want 100000", cfg.Acquisition.Rate)
	}
	if cfg.Acquisition.Length != DefaultLength {
		t.Errorf("length = %d, want default %d", cfg.Acquisition.Length, DefaultLength)
	}
	if cfg.Acquisition.Signal.Waveform != "zero" {
		t.Errorf("waveform = %q, want zero", cfg.Acquisition.Signal.Waveform)
	}
	if cfg.Analysis.Strategy != "retain" || cfg.Analysis.FirstBin != 1 || cfg.Analysis.LastBin != 2 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Cycle.Interval != 2*time.Second {
		t.Errorf("interval = %s, want 2s", cfg.Cycle.Interval)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.1:9999" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_ACQ_RATE", "50000")
	t.Setenv("ENV_ANALYSIS_STRATEGY", "single")
	t.Setenv("ENV_CYCLE_INTERVAL", "1s")
	t.Setenv("ENV_UDP_ENABLED", "not-a-bool")

	path := writeTempConfig(t, "acquisition:\n  rate: 100000\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Acquisition.Rate != 50000 {
		t.Errorf("rate = %d, env should win over file", cfg.Acquisition.Rate)
	}
	if cfg.Analysis.Strategy != "single" {
		t.Errorf("strategy = %q, want single", cfg.Analysis.Strategy)
	}
	if cfg.Cycle.Interval != time.Second {
		t.Errorf("interval = %s, want 1s", cfg.Cycle.Interval)
	}
	if cfg.Transport.UDPEnabled {
		t.Error("unparseable bool must be ignored")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad source", func(c *Config) { c.Acquisition.Source = "mic" }, "acquisition.source"},
		{"rate too high", func(c *Config) { c.Acquisition.Rate = 600000 }, "acquisition.rate"},
		{"wav without path", func(c *Config) { c.Acquisition.Source = "wav" }, "wav_path"},
		{"window not power of two", func(c *Config) { c.Analysis.WindowSize = 12 }, "window_size"},
		{"bin beyond half window", func(c *Config) { c.Analysis.LastBin = 8 }, "analysis bins"},
		{"inverted bins", func(c *Config) { c.Analysis.FirstBin = 5; c.Analysis.LastBin = 4 }, "analysis bins"},
		{"short buffer", func(c *Config) { c.Acquisition.Length = 8 }, "shorter than one window"},
		{"bad strategy", func(c *Config) { c.Analysis.Strategy = "mean" }, "analysis.strategy"},
		{"record past region", func(c *Config) { c.Storage.Offset = DefaultStoreSize - 4 }, "does not fit"},
		{"sector not power of two", func(c *Config) { c.Storage.SectorSize = 3000 }, "storage.sector_size"},
		{"region rounded to sectors", func(c *Config) {
			c.Storage.Size = 10
			c.Storage.Offset = 4000
		}, ""},
		{"udp without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"bad exporter", func(c *Config) { c.Trace.Exporter = "jaeger" }, "trace.exporter"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
