// SPDX-License-Identifier: MIT
package storage

import (
	"bytes"
	"sync"
	"time"

	"spectrallog/internal/dispatch"
)

// Op is one journaled store operation.
type Op struct {
	Kind   dispatch.Kind
	Offset int
	Length int
	Err    error // issue error, nil if the operation was started
}

// MemStore is an in-memory region with the same validation as FileStore. It
// can delay completions and inject faults, and keeps a journal of every
// operation issued against it.
type MemStore struct {
	staging

	loop    *dispatch.Loop
	latency time.Duration

	opMu        sync.Mutex
	region      []byte
	journal     []Op
	issueErr    error
	completeErr error
	short       int
}

// NewMemStore returns an erased in-memory region of size bytes (DefaultSize
// if zero). With a latency of zero completions are posted immediately.
func NewMemStore(loop *dispatch.Loop, size int, latency time.Duration) *MemStore {
	if size <= 0 {
		size = DefaultSize
	}
	return &MemStore{
		staging: staging{size: size},
		loop:    loop,
		latency: latency,
		region:  bytes.Repeat([]byte{Erased}, size),
	}
}

// FailIssue makes the next Write or Read fail to start with err.
func (m *MemStore) FailIssue(err error) {
	m.opMu.Lock()
	m.issueErr = err
	m.opMu.Unlock()
}

// FailCompletion makes the next started operation complete with err and no
// bytes transferred.
func (m *MemStore) FailCompletion(err error) {
	m.opMu.Lock()
	m.completeErr = err
	m.opMu.Unlock()
}

// ShortWrite makes the next write report only n bytes transferred.
func (m *MemStore) ShortWrite(n int) {
	m.opMu.Lock()
	m.short = n
	m.opMu.Unlock()
}

// Journal returns a copy of the operations issued so far.
func (m *MemStore) Journal() []Op {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return append([]Op(nil), m.journal...)
}

// Bytes returns a copy of the region content in [offset, offset+n).
func (m *MemStore) Bytes(offset, n int) []byte {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return append([]byte(nil), m.region[offset:offset+n]...)
}

// Write copies length bytes of the staged write buffer into the region.
func (m *MemStore) Write(offset, length int) (*dispatch.Completion[int], error) {
	return m.start(dispatch.KindWrite, offset, length)
}

// Read copies length bytes of the region into the staged read buffer.
func (m *MemStore) Read(offset, length int) (*dispatch.Completion[int], error) {
	return m.start(dispatch.KindRead, offset, length)
}

func (m *MemStore) start(kind dispatch.Kind, offset, length int) (*dispatch.Completion[int], error) {
	m.opMu.Lock()
	err := m.issueErr
	m.issueErr = nil
	m.opMu.Unlock()

	var buf []byte
	if err == nil {
		buf, err = m.begin(kind, offset, length)
	}

	m.opMu.Lock()
	m.journal = append(m.journal, Op{Kind: kind, Offset: offset, Length: length, Err: err})
	m.opMu.Unlock()
	if err != nil {
		return nil, err
	}

	var data []byte
	if kind == dispatch.KindWrite {
		data = append([]byte(nil), buf[:length]...)
	}

	c := dispatch.NewCompletion[int](kind)
	transfer := func() {
		n, err := m.transfer(kind, offset, length, data, buf)
		m.complete(m.loop, c, n, err)
	}
	if m.latency > 0 {
		time.AfterFunc(m.latency, transfer)
	} else {
		transfer()
	}
	return c, nil
}

func (m *MemStore) transfer(kind dispatch.Kind, offset, length int, data, buf []byte) (int, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.completeErr; err != nil {
		m.completeErr = nil
		return 0, err
	}
	if kind == dispatch.KindRead {
		return copy(buf[:length], m.region[offset:offset+length]), nil
	}

	n := length
	if m.short > 0 && m.short < length {
		n = m.short
	}
	m.short = 0
	copy(m.region[offset:], data[:n])
	return n, nil
}
