// SPDX-License-Identifier: MIT
package adc

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Waveform selects what the simulated converter sees on its input.
type Waveform int

const (
	WaveZero Waveform = iota
	WaveDC
	WaveSine
	WaveNoise
)

func (w Waveform) String() string {
	switch w {
	case WaveZero:
		return "zero"
	case WaveDC:
		return "dc"
	case WaveSine:
		return "sine"
	case WaveNoise:
		return "noise"
	default:
		return fmt.Sprintf("waveform(%d)", int(w))
	}
}

// ParseWaveform converts a name (case-insensitive) to a Waveform.
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(name) {
	case "zero", "":
		return WaveZero, nil
	case "dc":
		return WaveDC, nil
	case "sine", "sin":
		return WaveSine, nil
	case "noise":
		return WaveNoise, nil
	default:
		return WaveZero, fmt.Errorf("unknown waveform: '%s'", name)
	}
}

// Signal describes a generated input. Amplitude and Offset are in sample
// units: a sine swings Offset±Amplitude, noise is uniform in the same range,
// DC sits at Offset. The zero waveform produces raw zeros regardless of
// Offset.
type Signal struct {
	Waveform  Waveform
	Frequency float64 // Hz, sine only
	Amplitude float64
	Offset    float64
}

// DefaultSignal is a mid-scale 31.25 kHz sine, which falls on bin 4 of a
// 16-point transform at 125 kHz.
var DefaultSignal = Signal{
	Waveform:  WaveSine,
	Frequency: 31250,
	Amplitude: 1000,
	Offset:    Midscale,
}

// generator renders a Signal one sample at a time. It keeps its own sample
// clock so that consecutive buffers continue the same waveform.
type generator struct {
	signal Signal
	rng    *rand.Rand
	n      uint64
}

func newGenerator(s Signal, seed uint64) *generator {
	return &generator{
		signal: s,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// fill writes len(buf) samples taken at rate Hz.
func (g *generator) fill(buf []uint16, rate uint32) {
	s := g.signal
	for i := range buf {
		var v float64
		switch s.Waveform {
		case WaveZero:
			v = 0
		case WaveDC:
			v = s.Offset
		case WaveSine:
			tm := float64(g.n) / float64(rate)
			v = s.Offset + s.Amplitude*math.Sin(2*math.Pi*s.Frequency*tm)
		case WaveNoise:
			v = s.Offset + s.Amplitude*(2*g.rng.Float64()-1)
		}
		buf[i] = clamp(int(math.Round(v)))
		g.n++
	}
}
