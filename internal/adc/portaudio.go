// SPDX-License-Identifier: MIT
package adc

import (
	"fmt"
	"sync/atomic"
	"time"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/retcode"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver captures from a sound card input. Each input channel of the
// device is one analog channel. The stream is opened in blocking mode on the
// first request and reopened whenever the rate or buffer length changes.
//
// PortAudio must have been initialized with Initialize.
type PortAudioDriver struct {
	loop         *dispatch.Loop
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	channels     int

	inputStream *portaudio.Stream
	inputBuffer []int16 // interleaved frames
	rate        uint32
	frames      int

	busy atomic.Bool
}

// NewPortAudioDriver selects deviceID (DefaultDevice for the system default)
// and captures channels interleaved inputs from it.
func NewPortAudioDriver(loop *dispatch.Loop, deviceID, channels int, lowLatency bool) (*PortAudioDriver, error) {
	device, err := InputDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if channels <= 0 || channels > device.MaxInputChannels {
		return nil, fmt.Errorf("device %s supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, channels)
	}

	d := &PortAudioDriver{
		loop:        loop,
		inputDevice: device,
		channels:    channels,
	}
	if lowLatency {
		d.inputLatency = device.DefaultLowInputLatency
	} else {
		d.inputLatency = device.DefaultHighInputLatency
	}
	log.Infof("ADC: capturing from %s (%d ch)", device.Name, channels)
	return d, nil
}

// Sample implements Driver. The capture runs on its own goroutine.
func (d *PortAudioDriver) Sample(channel uint8, rate uint32, buf []uint16) (*dispatch.Completion[int], error) {
	if err := validate(channel, d.channels, rate, buf); err != nil {
		return nil, err
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, retcode.ErrBusy
	}
	if err := d.openStream(rate, len(buf)); err != nil {
		d.busy.Store(false)
		return nil, err
	}

	c := dispatch.NewCompletion[int](dispatch.KindSample)
	go func() {
		err := d.inputStream.Read()
		n := 0
		if err != nil {
			err = fmt.Errorf("capture failed: %w: %w", retcode.ErrFail, err)
		} else {
			for i := range buf {
				buf[i] = fromSigned(int(d.inputBuffer[i*d.channels+int(channel)]), 16)
			}
			n = len(buf)
		}
		d.loop.Post(func() {
			d.busy.Store(false)
			c.Complete(n, err)
		})
	}()
	return c, nil
}

func (d *PortAudioDriver) openStream(rate uint32, frames int) error {
	if d.inputStream != nil && d.rate == rate && d.frames == frames {
		return nil
	}
	if err := d.closeStream(); err != nil {
		return err
	}

	d.inputBuffer = make([]int16, frames*d.channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: d.channels,
			Device:   d.inputDevice,
			Latency:  d.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: frames,
		SampleRate:      float64(rate),
	}

	stream, err := portaudio.OpenStream(params, &d.inputBuffer)
	if err != nil {
		return fmt.Errorf("failed to open stream at %d Hz: %w: %w", rate, retcode.ErrNoSupport, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream: %w: %w", retcode.ErrFail, err)
	}

	d.inputStream = stream
	d.rate = rate
	d.frames = frames
	return nil
}

func (d *PortAudioDriver) closeStream() error {
	if d.inputStream == nil {
		return nil
	}
	if err := d.inputStream.Stop(); err != nil {
		return err
	}
	if err := d.inputStream.Close(); err != nil {
		return err
	}
	d.inputStream = nil
	return nil
}

// Close stops and closes the capture stream.
func (d *PortAudioDriver) Close() error {
	if d.busy.Load() {
		return retcode.ErrBusy
	}
	return d.closeStream()
}
