// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"time"

	"spectrallog/internal/adc"
	"spectrallog/internal/config"
	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/storage"
	"spectrallog/internal/transport"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openDriver builds the sample source selected by the configuration,
// wrapped in a recorder when a record path is set.
func openDriver(loop *dispatch.Loop, a config.AcquisitionConfig, c *closers) (adc.Driver, error) {
	var drv adc.Driver
	switch a.Source {
	case "sim":
		wave, err := adc.ParseWaveform(a.Signal.Waveform)
		if err != nil {
			return nil, err
		}
		drv = adc.NewSimDriver(loop, adc.Signal{
			Waveform:  wave,
			Frequency: a.Signal.Frequency,
			Amplitude: a.Signal.Amplitude,
			Offset:    a.Signal.Offset,
		}, adc.SimOptions{Realtime: a.Realtime, Seed: a.Signal.Seed})
	case "wav":
		w, err := adc.OpenWAVDriver(loop, a.WAVPath)
		if err != nil {
			return nil, err
		}
		drv = w
	case "portaudio":
		if err := adc.Initialize(); err != nil {
			return nil, err
		}
		c.add(adc.Terminate)
		p, err := adc.NewPortAudioDriver(loop, a.Device, a.Channels, a.LowLatency)
		if err != nil {
			return nil, err
		}
		c.add(p.Close)
		drv = p
	default:
		return nil, fmt.Errorf("unknown acquisition source %q", a.Source)
	}

	if a.RecordPath != "" {
		rec, err := adc.NewRecordingDriver(drv, a.RecordPath, a.Rate)
		if err != nil {
			return nil, err
		}
		c.add(rec.Close)
		drv = rec
	}
	return drv, nil
}

func acquirerConfig(a config.AcquisitionConfig) adc.AcquirerConfig {
	return adc.AcquirerConfig{
		Channel:        uint8(a.Channel),
		Rate:           uint32(a.Rate),
		Length:         a.Length,
		MaxRetries:     uint64(a.MaxRetries),
		InitialBackoff: a.InitialBackoff,
		MaxBackoff:     a.MaxBackoff,
	}
}

// openStore opens the non-volatile region holding the record.
func openStore(loop *dispatch.Loop, s config.StorageConfig, c *closers) (storage.Store, error) {
	switch s.Backend {
	case "file":
		fs, err := storage.OpenFileStore(loop, s.Path, s.Size, s.SectorSize)
		if err != nil {
			return nil, err
		}
		c.add(fs.Close)
		return fs, nil
	case "mem":
		return storage.NewMemStore(loop, s.Size, 0), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// openSinks connects the configured snapshot transports. latest and the
// logging sink are always part of the fan-out; stream, MQTT and ClickHouse
// join when configured. Closing the result closes every sink.
func openSinks(t config.TransportConfig, latest *transport.Latest, stream transport.Transport) (transport.Multi, error) {
	sinks := transport.Multi{latest, transport.NewLoggingTransport()}
	if stream != nil {
		sinks = append(sinks, stream)
	}

	if t.MQTT.Broker != "" {
		m, err := transport.NewMQTTTransport(transport.MQTTConfig{
			Broker:   t.MQTT.Broker,
			ClientID: t.MQTT.ClientID,
			Username: t.MQTT.Username,
			Password: t.MQTT.Password,
			Topic:    t.MQTT.Topic,
			QoS:      byte(t.MQTT.QoS),
			Retained: t.MQTT.Retained,
			Timeout:  t.MQTT.Timeout,
		})
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, m)
	}

	if t.ClickHouse.Addr != "" {
		ch, err := transport.NewClickHouseTransport(transport.ClickHouseConfig{
			Addr:     t.ClickHouse.Addr,
			Database: t.ClickHouse.Database,
			Username: t.ClickHouse.Username,
			Password: t.ClickHouse.Password,
			Timeout:  t.ClickHouse.Timeout,
		})
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, ch)
	}

	log.Infof("Transport: publishing to %d sinks", len(sinks))
	return sinks, nil
}

// shutdownTimeout bounds the HTTP server drain on exit.
const shutdownTimeout = 5 * time.Second
