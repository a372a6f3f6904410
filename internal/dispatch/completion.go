// SPDX-License-Identifier: MIT
package dispatch

import (
	"context"
	"fmt"
)

// Kind identifies the operation a completion belongs to.
type Kind uint8

const (
	KindSample Kind = iota
	KindRead
	KindWrite
	KindAlarm
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSample:
		return "sample"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindAlarm:
		return "alarm"
	default:
		return "unknown"
	}
}

// Completion is the token for one outstanding asynchronous operation. It is
// created by the call that issues the operation, completed exactly once by a
// callback running on the loop, and consumed by whoever awaits it.
//
// A Completion is owned by the loop goroutine. Complete must only be called
// from a callback delivered through Loop.Post.
type Completion[T any] struct {
	kind  Kind
	done  bool
	value T
	err   error
	then  []func(T, error)
}

// NewCompletion returns a pending completion of the given kind.
func NewCompletion[T any](kind Kind) *Completion[T] {
	return &Completion[T]{kind: kind}
}

// Complete records the outcome and marks the completion done. Completing a
// completion twice is a driver bug and panics.
func (c *Completion[T]) Complete(value T, err error) {
	if c.done {
		panic(fmt.Sprintf("dispatch: %s completion fired twice", c.kind))
	}
	c.value = value
	c.err = err
	c.done = true
	for _, fn := range c.then {
		fn(value, err)
	}
	c.then = nil
}

// Then registers fn to run on the loop right after the outcome is recorded,
// before any waiter resumes. On a completion that is already done fn runs
// immediately.
func (c *Completion[T]) Then(fn func(T, error)) {
	if c.done {
		fn(c.value, c.err)
		return
	}
	c.then = append(c.then, fn)
}

// Done reports whether the operation has completed.
func (c *Completion[T]) Done() bool {
	return c.done
}

// Kind returns the operation kind.
func (c *Completion[T]) Kind() Kind {
	return c.kind
}

// Result returns the recorded outcome. Before Done it returns the zero value
// and a nil error.
func (c *Completion[T]) Result() (T, error) {
	return c.value, c.err
}

// Await drives l until c completes and returns its result. The context error is
// returned if ctx ends first; c stays outstanding in that case.
func Await[T any](ctx context.Context, l *Loop, c *Completion[T]) (T, error) {
	if err := l.WaitUntil(ctx, c.Done); err != nil {
		var zero T
		return zero, err
	}
	return c.Result()
}

// Resolve is a convenience for producers: it posts the completion of c with
// value and err onto l.
func Resolve[T any](l *Loop, c *Completion[T], value T, err error) {
	l.Post(func() { c.Complete(value, err) })
}
