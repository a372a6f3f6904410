// SPDX-License-Identifier: MIT

// Package spectrum turns fixed-size windows of integer samples into integer
// magnitude spectra.
//
// A buffer of samples is cut into non-overlapping windows (Windows, Load); each
// window goes through a real FFT (gonum dsp/fourier) and the magnitudes of the
// first Size/2 coefficients are rounded to the nearest integer. With the
// default size of 16 that gives 8 bins, from DC up to just below Nyquist.
package spectrum
