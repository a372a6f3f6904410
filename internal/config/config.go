// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults of the measurement pipeline. The acquisition and analysis values
// match the board the logger was built for: channel 0 at 125 kHz, 500
// samples, 16-point windows with bins 3 to 7 tracked.
const (
	DefaultConfigFile = "spectrallog.yaml"
	DefaultEnvFile    = ".env"

	DefaultSource         = "sim"
	DefaultChannel        = 0
	DefaultRate           = 125000
	DefaultLength         = 500
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Millisecond
	DefaultMaxBackoff     = 50 * time.Millisecond

	DefaultWindowSize = 16
	DefaultWindowFunc = "rectangular"
	DefaultFirstBin   = 3
	DefaultLastBin    = 7
	DefaultStrategy   = "resample"
	DefaultBlocks     = 4

	DefaultBackend    = "file"
	DefaultStorePath  = "spectrallog.flash"
	DefaultStoreSize  = 0x40000
	DefaultSectorSize = 4096

	DefaultInterval = 500 * time.Millisecond
)

// Config represents the application configuration, loaded from YAML.
type Config struct {
	LogLevel    string            `yaml:"log_level"`  // debug, info, warn, error
	LogFormat   string            `yaml:"log_format"` // console or json
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Storage     StorageConfig     `yaml:"storage"`
	Cycle       CycleConfig       `yaml:"cycle"`
	Transport   TransportConfig   `yaml:"transport"`
	Trace       TraceConfig       `yaml:"trace"`
}

// AcquisitionConfig selects the sample source and its request parameters.
type AcquisitionConfig struct {
	Source         string        `yaml:"source"` // sim, wav or portaudio
	Channel        int           `yaml:"channel"`
	Rate           int           `yaml:"rate"`   // Hz
	Length         int           `yaml:"length"` // samples per acquisition
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	Signal     SignalConfig `yaml:"signal"`
	Realtime   bool         `yaml:"realtime"` // sim completes after length/rate
	WAVPath    string       `yaml:"wav_path"`
	Device     int          `yaml:"device"` // PortAudio input index, -1 for default
	Channels   int          `yaml:"channels"`
	LowLatency bool         `yaml:"low_latency"`
	RecordPath string       `yaml:"record_path"` // empty disables recording
}

// SignalConfig describes the simulated input.
type SignalConfig struct {
	Waveform  string  `yaml:"waveform"` // zero, dc, sine, noise
	Frequency float64 `yaml:"frequency"`
	Amplitude float64 `yaml:"amplitude"`
	Offset    float64 `yaml:"offset"`
	Seed      uint64  `yaml:"seed"`
}

// AnalysisConfig controls windowing and averaging.
type AnalysisConfig struct {
	WindowSize int    `yaml:"window_size"`
	WindowFunc string `yaml:"window_func"`
	FirstBin   int    `yaml:"first_bin"`
	LastBin    int    `yaml:"last_bin"`
	Strategy   string `yaml:"strategy"` // resample, retain or single
	Blocks     int    `yaml:"blocks"`
}

// StorageConfig locates the persisted record.
type StorageConfig struct {
	Backend    string `yaml:"backend"` // file or mem
	Path       string `yaml:"path"`
	Size       int    `yaml:"size"`
	SectorSize int    `yaml:"sector_size"`
	Offset     int    `yaml:"offset"`
}

// CycleConfig paces the measurement loop.
type CycleConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Cycles stops the loop after this many iterations. 0 runs until
	// interrupted.
	Cycles int `yaml:"cycles"`
}

// TransportConfig enables the snapshot sinks.
type TransportConfig struct {
	HTTPAddr string `yaml:"http_addr"` // empty disables the HTTP server

	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`

	MQTT       MQTTConfig       `yaml:"mqtt"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// MQTTConfig holds the broker settings. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Topic    string        `yaml:"topic"`
	QoS      int           `yaml:"qos"`
	Retained bool          `yaml:"retained"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ClickHouseConfig holds the history database settings. An empty Addr
// disables it.
type ClickHouseConfig struct {
	Addr     string        `yaml:"addr"`
	Database string        `yaml:"database"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TraceConfig selects the span exporter: none or stdout.
type TraceConfig struct {
	Exporter     string  `yaml:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",
		Acquisition: AcquisitionConfig{
			Source:         DefaultSource,
			Channel:        DefaultChannel,
			Rate:           DefaultRate,
			Length:         DefaultLength,
			MaxRetries:     DefaultMaxRetries,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			Signal: SignalConfig{
				Waveform:  "sine",
				Frequency: 31250,
				Amplitude: 1000,
				Offset:    2048,
			},
			Device:   -1,
			Channels: 1,
		},
		Analysis: AnalysisConfig{
			WindowSize: DefaultWindowSize,
			WindowFunc: DefaultWindowFunc,
			FirstBin:   DefaultFirstBin,
			LastBin:    DefaultLastBin,
			Strategy:   DefaultStrategy,
			Blocks:     DefaultBlocks,
		},
		Storage: StorageConfig{
			Backend:    DefaultBackend,
			Path:       DefaultStorePath,
			Size:       DefaultStoreSize,
			SectorSize: DefaultSectorSize,
		},
		Cycle: CycleConfig{
			Interval: DefaultInterval,
		},
		Transport: TransportConfig{
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  100 * time.Millisecond,
			MQTT: MQTTConfig{
				ClientID: "spectrallog",
				Topic:    "spectrallog/averages",
				QoS:      1,
				Timeout:  5 * time.Second,
			},
			ClickHouse: ClickHouseConfig{
				Database: "default",
				Username: "default",
				Timeout:  5 * time.Second,
			},
		},
		Trace: TraceConfig{
			Exporter:     "none",
			SamplingRate: 1,
		},
	}
}
