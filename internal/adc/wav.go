// SPDX-License-Identifier: MIT
package adc

import (
	"fmt"
	"os"
	"sync/atomic"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/retcode"

	"github.com/go-audio/wav"
)

// WAVDriver plays a WAV file back as the converter input. Each WAV channel is
// one analog channel. The file is resampled to the requested rate by picking
// the nearest source frame and loops when it runs out.
type WAVDriver struct {
	loop       *dispatch.Loop
	data       []int
	channels   int
	frames     int
	sampleRate float64
	bitDepth   int

	pos  []float64 // per-channel read position in source frames
	busy atomic.Bool
}

// OpenWAVDriver decodes the whole file at path into memory.
func OpenWAVDriver(loop *dispatch.Loop, path string) (*WAVDriver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV file: %w", err)
	}

	channels := pcm.Format.NumChannels
	if channels <= 0 || len(pcm.Data) < channels {
		return nil, fmt.Errorf("%s holds no audio", path)
	}

	d := &WAVDriver{
		loop:       loop,
		data:       pcm.Data,
		channels:   channels,
		frames:     len(pcm.Data) / channels,
		sampleRate: float64(pcm.Format.SampleRate),
		bitDepth:   int(dec.BitDepth),
		pos:        make([]float64, channels),
	}
	log.Infof("ADC: playing %s (%d ch, %.0f Hz, %d bit, %d frames)",
		path, d.channels, d.sampleRate, d.bitDepth, d.frames)
	return d, nil
}

// Channels returns the number of channels in the file.
func (d *WAVDriver) Channels() int { return d.channels }

// Sample implements Driver.
func (d *WAVDriver) Sample(channel uint8, rate uint32, buf []uint16) (*dispatch.Completion[int], error) {
	if err := validate(channel, d.channels, rate, buf); err != nil {
		return nil, err
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, retcode.ErrBusy
	}

	step := d.sampleRate / float64(rate)
	pos := d.pos[channel]
	for i := range buf {
		frame := int(pos)
		buf[i] = d.convert(d.data[frame*d.channels+int(channel)])
		pos += step
		for pos >= float64(d.frames) {
			pos -= float64(d.frames)
		}
	}
	d.pos[channel] = pos

	c := dispatch.NewCompletion[int](dispatch.KindSample)
	d.loop.Post(func() {
		d.busy.Store(false)
		c.Complete(len(buf), nil)
	})
	return c, nil
}

// convert maps a decoded PCM value to a 12-bit sample. 8-bit WAV data is
// unsigned, wider depths are signed.
func (d *WAVDriver) convert(v int) uint16 {
	if d.bitDepth == 8 {
		return clamp(v << (Resolution - 8))
	}
	return fromSigned(v, d.bitDepth)
}
