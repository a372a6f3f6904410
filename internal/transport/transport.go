// SPDX-License-Identifier: MIT

// Package transport publishes per-cycle snapshots of the running averages to
// external sinks. The core never depends on a sink succeeding: send errors
// are reported to the caller, which logs them and carries on.
package transport

import (
	"errors"
	"time"
)

// Snapshot is the outcome of one cycle as seen by the outside world.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Cycle     uint64    `json:"cycle"`
	Timestamp time.Time `json:"timestamp"`
	FirstBin  int       `json:"first_bin"`
	Averages  []float32 `json:"averages"`
	Counts    []uint64  `json:"counts"`

	AcquisitionFailed bool `json:"acquisition_failed"`
	Persisted         bool `json:"persisted"`
}

// Transport defines a generic interface for sending snapshots.
// Implementations must be safe for concurrent use and must not retain the
// snapshot's slices after Send returns.
type Transport interface {
	Send(s *Snapshot) error
	Close() error
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Averages = append([]float32(nil), s.Averages...)
	c.Counts = append([]uint64(nil), s.Counts...)
	return &c
}

// Multi fans a snapshot out to several transports. Every transport is tried;
// the returned error joins the individual failures.
type Multi []Transport

// Send implements Transport.
func (m Multi) Send(s *Snapshot) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Transport.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
