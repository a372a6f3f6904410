// SPDX-License-Identifier: MIT

// Package storage provides the non-volatile region the averages are persisted
// to. A Store follows the split-phase shape of a flash driver: buffers are
// staged once, then Write and Read start an operation and hand back a
// completion that fires on the event loop when the bytes have moved.
package storage

import (
	"fmt"
	"sync"

	"spectrallog/internal/dispatch"
	"spectrallog/internal/retcode"
)

const (
	// DefaultSize is the length of the user-accessible region: 256 KiB.
	DefaultSize = 0x40000

	// DefaultSectorSize is the erase/program granularity of the region.
	DefaultSectorSize = 4096

	// Erased is the value of a byte that has never been programmed.
	Erased byte = 0xFF
)

// Store is a region of non-volatile memory with asynchronous access.
//
// WriteBuffer stages the buffer Write copies from; ReadBuffer stages the buffer
// Read fills. Write(offset, length) programs the first length bytes of the
// write buffer at offset. Issue failures are retcode errors: EBUSY while
// another operation is in flight, EINVAL for a range outside the region or
// nothing staged, ESIZE when length exceeds the staged buffer. The returned
// completion fires exactly once with the number of bytes transferred.
type Store interface {
	WriteBuffer(buf []byte) error
	ReadBuffer(buf []byte) error
	Write(offset, length int) (*dispatch.Completion[int], error)
	Read(offset, length int) (*dispatch.Completion[int], error)
	Size() int
}

// staging holds the buffers and the in-flight flag shared by every Store
// implementation.
type staging struct {
	mu       sync.Mutex
	size     int
	writeBuf []byte
	readBuf  []byte
	busy     bool
}

func (s *staging) WriteBuffer(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return retcode.ErrBusy
	}
	s.writeBuf = buf
	return nil
}

func (s *staging) ReadBuffer(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return retcode.ErrBusy
	}
	s.readBuf = buf
	return nil
}

func (s *staging) Size() int { return s.size }

// begin validates an operation against the staged buffer and marks the store
// busy. It returns the staged buffer the operation works on.
func (s *staging) begin(kind dispatch.Kind, offset, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, retcode.ErrBusy
	}
	buf := s.writeBuf
	if kind == dispatch.KindRead {
		buf = s.readBuf
	}
	if buf == nil {
		return nil, fmt.Errorf("%s: no buffer staged: %w", kind, retcode.ErrInvalid)
	}
	if offset < 0 || length <= 0 || offset+length > s.size {
		return nil, fmt.Errorf("%s [%d, %d) outside region of %d bytes: %w",
			kind, offset, offset+length, s.size, retcode.ErrInvalid)
	}
	if length > len(buf) {
		return nil, fmt.Errorf("%s of %d bytes exceeds staged buffer of %d: %w",
			kind, length, len(buf), retcode.ErrSize)
	}
	s.busy = true
	return buf, nil
}

// finish clears the busy flag. It runs on the loop, right before the
// completion is recorded, so a waiter that wakes up can issue the next
// operation immediately.
func (s *staging) finish() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether an operation is in flight.
func (s *staging) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// complete posts the outcome of an operation onto l.
func (s *staging) complete(l *dispatch.Loop, c *dispatch.Completion[int], n int, err error) {
	l.Post(func() {
		s.finish()
		c.Complete(n, err)
	})
}
