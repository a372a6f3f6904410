// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
)

// Latest keeps a copy of the most recent snapshot for readers that poll, such
// as the HTTP API and the UDP publisher.
type Latest struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewLatest returns an empty Latest.
func NewLatest() *Latest {
	return &Latest{}
}

// Send stores a copy of s.
func (l *Latest) Send(s *Snapshot) error {
	c := s.Clone()
	l.mu.Lock()
	l.snap = c
	l.mu.Unlock()
	return nil
}

// Snapshot returns the most recent snapshot and whether there is one. The
// result is shared and must not be modified.
func (l *Latest) Snapshot() (*Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap, l.snap != nil
}

// Close implements Transport.
func (l *Latest) Close() error { return nil }

var _ Transport = (*Latest)(nil)
