// SPDX-License-Identifier: MIT
package adc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/retcode"

	"github.com/cenkalti/backoff/v4"
)

// Acquisition defaults: 500 samples of channel 0 at 125 kHz.
const (
	DefaultChannel        = 0
	DefaultRate           = 125000
	DefaultLength         = 500
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 2 * time.Millisecond
	DefaultMaxBackoff     = 50 * time.Millisecond
)

// AcquisitionError reports a failed acquisition.
type AcquisitionError struct {
	Channel  uint8
	Rate     uint32
	Attempts int
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition on channel %d at %d Hz failed after %d attempt(s): %v",
		e.Channel, e.Rate, e.Attempts, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// AcquirerConfig holds the parameters of every acquisition.
type AcquirerConfig struct {
	Channel uint8
	Rate    uint32
	Length  int

	// EBUSY is retried up to MaxRetries times with exponential backoff
	// between InitialBackoff and MaxBackoff. Other failures are returned
	// immediately.
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultAcquirerConfig returns the board defaults.
func DefaultAcquirerConfig() AcquirerConfig {
	return AcquirerConfig{
		Channel:        DefaultChannel,
		Rate:           DefaultRate,
		Length:         DefaultLength,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// Acquirer fills a caller-owned buffer with one block of samples per call.
type Acquirer struct {
	cfg    AcquirerConfig
	loop   *dispatch.Loop
	driver Driver

	// OnRetry, if set, is called before each backoff wait.
	OnRetry func(err error, wait time.Duration)
}

// NewAcquirer returns an acquirer issuing requests to driver and waiting for
// them on loop.
func NewAcquirer(loop *dispatch.Loop, driver Driver, cfg AcquirerConfig) (*Acquirer, error) {
	if cfg.Length <= 0 {
		return nil, fmt.Errorf("acquisition length must be positive, got %d", cfg.Length)
	}
	if cfg.Rate == 0 || cfg.Rate > MaxRate {
		return nil, fmt.Errorf("acquisition rate must be in (0, %d] Hz, got %d", MaxRate, cfg.Rate)
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Acquirer{cfg: cfg, loop: loop, driver: driver}, nil
}

// Config returns the acquisition parameters.
func (a *Acquirer) Config() AcquirerConfig { return a.cfg }

// Acquire fills buf[:Length] with fresh samples. buf must hold at least
// Length samples; a smaller buffer fails with ESIZE without touching the
// driver. On failure the content of buf is unspecified.
func (a *Acquirer) Acquire(ctx context.Context, buf []uint16) error {
	if len(buf) < a.cfg.Length {
		return a.fail(0, fmt.Errorf("buffer holds %d samples, %d required: %w",
			len(buf), a.cfg.Length, retcode.ErrSize))
	}
	buf = buf[:a.cfg.Length]

	b := a.newBackOff()
	for attempt := 1; ; attempt++ {
		err := a.once(ctx, buf)
		if err == nil {
			return nil
		}
		if !errors.Is(err, retcode.ErrBusy) || ctx.Err() != nil {
			return a.fail(attempt, err)
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return a.fail(attempt, err)
		}
		log.Debugf("ADC: channel %d busy, retrying in %s", a.cfg.Channel, wait)
		if a.OnRetry != nil {
			a.OnRetry(err, wait)
		}
		// Waiting through the loop lets the completion that holds the
		// driver busy run.
		if err := a.loop.Delay(ctx, wait); err != nil {
			return a.fail(attempt, err)
		}
	}
}

func (a *Acquirer) once(ctx context.Context, buf []uint16) error {
	c, err := a.driver.Sample(a.cfg.Channel, a.cfg.Rate, buf)
	if err != nil {
		return err
	}
	n, err := dispatch.Await(ctx, a.loop, c)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("short acquisition: %d of %d samples: %w", n, len(buf), retcode.ErrSize)
	}
	return nil
}

func (a *Acquirer) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = a.cfg.InitialBackoff
	exp.MaxInterval = a.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.RandomizationFactor = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, a.cfg.MaxRetries)
}

func (a *Acquirer) fail(attempts int, err error) error {
	return &AcquisitionError{
		Channel:  a.cfg.Channel,
		Rate:     a.cfg.Rate,
		Attempts: attempts,
		Err:      err,
	}
}
