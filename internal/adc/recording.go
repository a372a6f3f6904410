// SPDX-License-Identifier: MIT
package adc

import (
	"fmt"
	"os"
	"sync/atomic"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingDriver wraps a Driver and appends every successfully captured
// buffer to a 16-bit mono WAV file. Samples are re-centred around zero and
// scaled from 12 to 16 bits.
type RecordingDriver struct {
	Driver

	rate       int
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer
	recording  atomic.Bool
	failures   int
}

// NewRecordingDriver creates filename and records into it at rate Hz. The
// rate only goes into the WAV header; buffers are written as captured.
func NewRecordingDriver(inner Driver, filename string, rate int) (*RecordingDriver, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	r := &RecordingDriver{
		Driver:     inner,
		rate:       rate,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, rate, 16, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
	r.recording.Store(true)
	log.Infof("ADC: recording captured samples to %s", filename)
	return r, nil
}

// Sample implements Driver. The buffer is recorded when the capture
// completes, before the waiter sees the completion.
func (r *RecordingDriver) Sample(channel uint8, rate uint32, buf []uint16) (*dispatch.Completion[int], error) {
	c, err := r.Driver.Sample(channel, rate, buf)
	if err != nil {
		return nil, err
	}
	c.Then(func(n int, err error) {
		if err == nil {
			r.write(buf[:n])
		}
	})
	return c, nil
}

// write appends buf to the WAV stream. It runs on the loop goroutine.
func (r *RecordingDriver) write(buf []uint16) {
	if !r.recording.Load() {
		return
	}
	if cap(r.sampleBuf.Data) < len(buf) {
		r.sampleBuf.Data = make([]int, len(buf))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(buf)]
	for i, s := range buf {
		r.sampleBuf.Data[i] = (int(s) - Midscale) << (16 - Resolution)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.failures++
		log.Errorf("ADC: error writing to WAV file: %v", err)
		if r.failures >= maxConsecutiveWriteFailures {
			log.Warnf("ADC: %d consecutive recording failures, recording stopped", r.failures)
			r.recording.Store(false)
		}
		return
	}
	r.failures = 0
}

// Close finalizes the WAV header and closes the file. It does not close the
// wrapped driver.
func (r *RecordingDriver) Close() error {
	r.recording.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}

const maxConsecutiveWriteFailures = 5
