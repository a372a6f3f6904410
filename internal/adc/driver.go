// SPDX-License-Identifier: MIT
/*
Package adc acquires blocks of analog samples.

Every source implements Driver, the split-phase contract of a sampling
peripheral: Sample validates the request, starts filling the caller's buffer
and returns a completion that fires on the event loop once the buffer holds
the requested number of samples. Samples are 12-bit offset binary (0..4095,
2048 is zero volts) in 16-bit containers.

Sources:
  - SimDriver generates zero, DC, sine or noise signals.
  - WAVDriver plays a WAV file back as the analog input.
  - PortAudioDriver captures from a sound card input.
  - RecordingDriver wraps another driver and records what it captures.

Acquirer sits on top of a Driver and turns one request into a synchronous,
context-aware call with bounded retry on EBUSY.
*/
package adc

import (
	"fmt"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/retcode"
)

const (
	// MaxRate is the highest sampling frequency the converter accepts.
	MaxRate = 500000

	// Resolution is the converter width in bits.
	Resolution = 12

	// MaxSample is the full-scale sample value.
	MaxSample = 1<<Resolution - 1

	// Midscale is the sample value of a zero-volt input.
	Midscale = 1 << (Resolution - 1)
)

// Driver is an asynchronous sampling peripheral.
//
// Sample starts filling buf with len(buf) samples of channel at rate Hz.
// The returned completion fires exactly once with the number of samples
// written. Issue failures are retcode errors: EBUSY while a request is
// active, EINVAL for a bad channel, a rate of zero or above MaxRate, or an
// empty buffer. The caller must not touch buf until the completion fires.
type Driver interface {
	Sample(channel uint8, rate uint32, buf []uint16) (*dispatch.Completion[int], error)
}

// validate applies the request checks shared by all drivers.
func validate(channel uint8, channels int, rate uint32, buf []uint16) error {
	if int(channel) >= channels {
		return fmt.Errorf("channel %d of %d: %w", channel, channels, retcode.ErrInvalid)
	}
	if rate == 0 || rate > MaxRate {
		return fmt.Errorf("sample rate %d Hz: %w", rate, retcode.ErrInvalid)
	}
	if len(buf) == 0 {
		return fmt.Errorf("empty sample buffer: %w", retcode.ErrInvalid)
	}
	return nil
}

// clamp converts v to a 12-bit sample, saturating at the rails.
func clamp(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > MaxSample {
		return MaxSample
	}
	return uint16(v)
}

// fromSigned maps a signed PCM sample of bitDepth bits onto the 12-bit offset
// binary scale.
func fromSigned(v int, bitDepth int) uint16 {
	if bitDepth > Resolution {
		v >>= bitDepth - Resolution
	} else if bitDepth < Resolution {
		v <<= Resolution - bitDepth
	}
	return clamp(v + Midscale)
}
