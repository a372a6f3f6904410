// SPDX-License-Identifier: MIT
/*
Package dispatch implements the cooperative event loop the pipeline runs on.

There is exactly one logical control flow: the goroutine that drives the loop
through Yield, WaitUntil, Await or Delay. Asynchronous producers (driver
goroutines, timers) never touch pipeline state directly. They hand a callback
to Post, and the callback runs later on the driving goroutine, to completion,
before control returns to whoever was waiting. State that is only written by
such callbacks therefore needs no locking.

Waiting parks the goroutine on the event queue. Nothing spins.
*/
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// DefaultQueueDepth bounds the number of ready events that can be queued
// before Post blocks the producer.
const DefaultQueueDepth = 64

// ErrReentrant is returned when WaitUntil is called from inside a callback
// that is itself being dispatched by WaitUntil.
var ErrReentrant = errors.New("dispatch: nested wait on the event loop")

// Loop is a queue of ready callbacks plus the logic to drive it.
type Loop struct {
	events  chan func()
	waiting atomic.Bool
	handled atomic.Uint64
}

// NewLoop creates a loop whose queue holds up to depth pending events.
// A depth <= 0 selects DefaultQueueDepth.
func NewLoop(depth int) *Loop {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Loop{events: make(chan func(), depth)}
}

// Post queues fn to run on the driving goroutine. It is safe to call from any
// goroutine and is the only way asynchronous work may report back.
func (l *Loop) Post(fn func()) {
	l.events <- fn
}

// Pending returns the number of queued events that have not run yet.
func (l *Loop) Pending() int {
	return len(l.events)
}

// Handled returns the total number of callbacks dispatched so far.
func (l *Loop) Handled() uint64 {
	return l.handled.Load()
}

// Yield parks until one event is ready, runs it and returns. It returns the
// context error if ctx ends first.
func (l *Loop) Yield(ctx context.Context) error {
	select {
	case fn := <-l.events:
		l.run(fn)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitUntil drives the loop until cond reports true. cond is evaluated on the
// calling goroutine before every park, so a condition that already holds
// returns immediately without dispatching anything.
//
// If the awaited event never fires and ctx is never cancelled, WaitUntil never
// returns.
func (l *Loop) WaitUntil(ctx context.Context, cond func() bool) error {
	if !l.waiting.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	defer l.waiting.Store(false)

	for !cond() {
		if err := l.Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Delay waits for d to elapse while continuing to dispatch other events.
// A timer posts an alarm completion which the caller then awaits.
func (l *Loop) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	c := NewCompletion[struct{}](KindAlarm)
	t := time.AfterFunc(d, func() { Resolve(l, c, struct{}{}, nil) })
	_, err := Await(ctx, l, c)
	if err != nil {
		t.Stop()
	}
	return err
}

func (l *Loop) run(fn func()) {
	l.handled.Add(1)
	fn()
}
