// SPDX-License-Identifier: MIT

// Package persist serializes the running averages and writes them to the
// non-volatile store, keeping at most one write in flight.
package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/log"
	"spectrallog/internal/retcode"
	"spectrallog/internal/storage"
)

// ErrErased is returned by Load when the record region has never been
// written.
var ErrErased = errors.New("persist: record region is erased")

// Stage names the phase of a write that failed.
type Stage string

const (
	StageIssue    Stage = "issue"
	StageComplete Stage = "complete"
)

// PersistError is a write failure the caller may recover from by trying again
// next cycle.
type PersistError struct {
	Stage Stage
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s failed: %v", e.Stage, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// FatalError is a write failure that will repeat on every attempt, such as an
// offset outside the region or a record larger than the staged buffer.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("persist: unrecoverable: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Coordinator owns the record buffer staged with the store and the write
// currently in flight.
type Coordinator struct {
	loop    *dispatch.Loop
	store   storage.Store
	offset  int
	record  []byte
	tracked int

	pending *dispatch.Completion[int]
	writes  uint64
}

// NewCoordinator stages a record buffer for tracked averages with store. Every
// Persist writes that buffer at offset.
func NewCoordinator(loop *dispatch.Loop, store storage.Store, offset, tracked int) (*Coordinator, error) {
	if tracked <= 0 {
		return nil, fmt.Errorf("tracked bin count must be positive, got %d", tracked)
	}
	c := &Coordinator{
		loop:    loop,
		store:   store,
		offset:  offset,
		record:  make([]byte, RecordSize(tracked)),
		tracked: tracked,
	}
	if err := store.WriteBuffer(c.record); err != nil {
		return nil, fmt.Errorf("failed to stage record buffer: %w", err)
	}
	return c, nil
}

// Writes returns the number of writes that completed successfully.
func (c *Coordinator) Writes() uint64 { return c.writes }

// Pending reports whether a write issued by an earlier Persist is still in
// flight (its wait was cancelled before it completed).
func (c *Coordinator) Pending() bool {
	return c.pending != nil && !c.pending.Done()
}

// Persist encodes avgs, writes the record and waits for the write to finish.
// A write left in flight by an earlier cancelled Persist is waited for first,
// so the store never sees two overlapping writes from the coordinator. If
// that write failed, the failure is logged and the current record is written
// anyway.
func (c *Coordinator) Persist(ctx context.Context, avgs []float32) error {
	if err := c.drain(ctx); err != nil {
		var perr *PersistError
		if !errors.As(err, &perr) {
			return err
		}
		log.Warnf("Persist: abandoned write failed: %v", err)
	}

	if err := Encode(c.record, avgs); err != nil {
		return &FatalError{Err: err}
	}

	done, err := c.store.Write(c.offset, len(c.record))
	if err != nil {
		if errors.Is(err, retcode.ErrInvalid) || errors.Is(err, retcode.ErrSize) {
			return &FatalError{Err: err}
		}
		return &PersistError{Stage: StageIssue, Err: err}
	}
	c.pending = done

	return c.drain(ctx)
}

// drain waits for the pending write, if any, and reports its outcome.
func (c *Coordinator) drain(ctx context.Context) error {
	if c.pending == nil {
		return nil
	}
	n, err := dispatch.Await(ctx, c.loop, c.pending)
	if !c.pending.Done() {
		return err
	}
	c.pending = nil

	if err != nil {
		return &PersistError{Stage: StageComplete, Err: err}
	}
	if n != len(c.record) {
		return &PersistError{
			Stage: StageComplete,
			Err:   fmt.Errorf("short write: %d of %d bytes: %w", n, len(c.record), retcode.ErrFail),
		}
	}
	c.writes++
	log.Debugf("Persist: wrote %d bytes at offset %d", n, c.offset)
	return nil
}

// Load reads a record of tracked averages at offset. It stages its own read
// buffer and waits for the read on loop. A region still in the erased state
// yields ErrErased.
func Load(ctx context.Context, loop *dispatch.Loop, store storage.Store, offset, tracked int) ([]float32, error) {
	buf := make([]byte, RecordSize(tracked))
	if err := store.ReadBuffer(buf); err != nil {
		return nil, fmt.Errorf("failed to stage read buffer: %w", err)
	}
	done, err := store.Read(offset, len(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to start read: %w", err)
	}
	n, err := dispatch.Await(ctx, loop, done)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("short read: %d of %d bytes: %w", n, len(buf), retcode.ErrFail)
	}
	if bytes.Count(buf, []byte{storage.Erased}) == len(buf) {
		return nil, ErrErased
	}

	avgs := make([]float32, tracked)
	if err := Decode(buf, avgs); err != nil {
		return nil, err
	}
	return avgs, nil
}
