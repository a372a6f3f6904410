// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"spectrallog/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultSize is the window length of the transform. It yields DefaultSize/2
// magnitude bins, bin 0 being DC.
const DefaultSize = 16

// ErrWindowLength is the panic value (wrapped) raised when Transform is handed
// a window or output slice of the wrong length. That is a caller bug, not a
// runtime condition.
var ErrWindowLength = errors.New("spectrum: window length mismatch")

// Pre-allocated buffers for one transform.
type workspace struct {
	input  []float64    // windowed input
	coeffs []complex128 // size/2 + 1 FFT coefficients
	taper  []float64    // window coefficients, nil for rectangular
}

// Transformer computes integer magnitude spectra of fixed-size integer
// windows. It is deterministic and allocation free after construction, and
// must not be shared between goroutines.
type Transformer struct {
	size      int
	windowFn  WindowFunc
	fft       *fourier.FFT
	workspace workspace
}

// New returns a transformer for windows of size samples. size must be a power
// of two of at least 4.
func New(size int, fn WindowFunc) (*Transformer, error) {
	if size < 4 || !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("window size must be a power of 2 >= 4, got %d", size)
	}

	t := &Transformer{
		size:     size,
		windowFn: fn,
		fft:      fourier.NewFFT(size),
		workspace: workspace{
			input:  make([]float64, size),
			coeffs: make([]complex128, size/2+1),
		},
	}
	if fn != Rectangular {
		t.workspace.taper = make([]float64, size)
		applyWindow(t.workspace.taper, fn)
	}
	return t, nil
}

// Size returns the window length.
func (t *Transformer) Size() int { return t.size }

// Bins returns the number of magnitude bins produced per window.
func (t *Transformer) Bins() int { return t.size / 2 }

// WindowFunc returns the taper applied before the FFT.
func (t *Transformer) WindowFunc() WindowFunc { return t.windowFn }

// Transform writes round(|X_k|) for k in [0, Size/2) into out. window must hold
// exactly Size values and out exactly Size/2; anything else panics.
func (t *Transformer) Transform(window []int32, out []int32) {
	if len(window) != t.size {
		panic(fmt.Errorf("%w: got %d samples, want %d", ErrWindowLength, len(window), t.size))
	}
	if len(out) != t.size/2 {
		panic(fmt.Errorf("%w: got %d output bins, want %d", ErrWindowLength, len(out), t.size/2))
	}

	ws := &t.workspace
	if ws.taper == nil {
		for i, v := range window {
			ws.input[i] = float64(v)
		}
	} else {
		for i, v := range window {
			ws.input[i] = float64(v) * ws.taper[i]
		}
	}

	t.fft.Coefficients(ws.coeffs, ws.input)
	for k := range out {
		out[k] = int32(math.Round(cmplx.Abs(ws.coeffs[k])))
	}
}

// Windows returns the number of complete, non-overlapping windows of size
// samples in a buffer of n samples. A trailing partial window is ignored.
func Windows(n, size int) int {
	if size <= 0 {
		return 0
	}
	return n / size
}

// Load copies window k of buf into dst, widening each sample. dst's length is
// the window size; buf must hold at least (k+1)*len(dst) samples.
func Load(dst []int32, buf []uint16, k int) {
	start := k * len(dst)
	for i, s := range buf[start : start+len(dst)] {
		dst[i] = int32(s)
	}
}

// BinFrequency returns the centre frequency in Hz of bin k for a transform of
// size points fed at rate samples per second.
func BinFrequency(k, size int, rate float64) float64 {
	if size <= 0 {
		return 0
	}
	return float64(k) * rate / float64(size)
}
