// SPDX-License-Identifier: MIT
package adc

import (
	"sync/atomic"
	"time"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/retcode"
)

// DefaultChannels is the number of analog inputs routed on the board.
const DefaultChannels = 6

// SimOptions configures a SimDriver.
type SimOptions struct {
	Channels int    // 0 selects DefaultChannels
	Realtime bool   // complete after len(buf)/rate instead of immediately
	Seed     uint64 // noise seed
}

// SimDriver is a converter fed by a signal generator. Every channel sees the
// same signal with its own sample clock.
type SimDriver struct {
	loop     *dispatch.Loop
	realtime bool
	gens     []*generator
	busy     atomic.Bool
	requests atomic.Uint64
}

// NewSimDriver returns a simulated converter feeding s to every channel.
func NewSimDriver(loop *dispatch.Loop, s Signal, opts SimOptions) *SimDriver {
	channels := opts.Channels
	if channels <= 0 {
		channels = DefaultChannels
	}
	gens := make([]*generator, channels)
	for i := range gens {
		gens[i] = newGenerator(s, opts.Seed+uint64(i))
	}
	return &SimDriver{
		loop:     loop,
		realtime: opts.Realtime,
		gens:     gens,
	}
}

// Requests returns the number of Sample calls that were accepted.
func (d *SimDriver) Requests() uint64 { return d.requests.Load() }

// Sample implements Driver.
func (d *SimDriver) Sample(channel uint8, rate uint32, buf []uint16) (*dispatch.Completion[int], error) {
	if err := validate(channel, len(d.gens), rate, buf); err != nil {
		return nil, err
	}
	if !d.busy.CompareAndSwap(false, true) {
		return nil, retcode.ErrBusy
	}
	d.requests.Add(1)

	d.gens[channel].fill(buf, rate)

	c := dispatch.NewCompletion[int](dispatch.KindSample)
	done := func() {
		d.loop.Post(func() {
			d.busy.Store(false)
			c.Complete(len(buf), nil)
		})
	}
	if d.realtime {
		time.AfterFunc(time.Duration(len(buf))*time.Second/time.Duration(rate), done)
	} else {
		done()
	}
	return c, nil
}
