// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"

	"spectrallog/internal/log"
	"spectrallog/internal/metrics"
	"spectrallog/internal/transport"
)

// MaxPacketSize is the largest UDP payload over IPv4.
const MaxPacketSize = 65507

var (
	// ErrSenderClosed is returned by sends after Close.
	ErrSenderClosed = errors.New("udp: sender closed")

	// ErrPacketTooLarge is returned for a snapshot whose packet would not fit
	// in one datagram.
	ErrPacketTooLarge = errors.New("udp: packet exceeds datagram size")
)

// UDPSender frames snapshots into sequence-numbered packets and writes them
// to a connected UDP socket. Sequence numbers count packets handed to the
// socket, so a receiver can detect loss by gaps.
type UDPSender struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	target  string
	seq     uint32
	buf     bytes.Buffer
	written uint64
	closed  bool
}

// NewUDPSender connects a sender to targetAddress ("host:port").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	log.Infof("UDPSender: Sending snapshots to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: addr.String()}, nil
}

// SendSnapshot packs s with the next sequence number and sends it. The
// sequence number is only consumed when the packet reaches the socket.
func (s *UDPSender) SendSnapshot(snap *transport.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}
	s.buf.Reset()
	if err := Pack(&s.buf, s.seq+1, snap); err != nil {
		return fmt.Errorf("failed to pack cycle %d: %w", snap.Cycle, err)
	}
	if s.buf.Len() > MaxPacketSize {
		return fmt.Errorf("cycle %d: %d bytes: %w", snap.Cycle, s.buf.Len(), ErrPacketTooLarge)
	}
	if err := s.write(s.buf.Bytes()); err != nil {
		return err
	}
	s.seq++
	return nil
}

// Send writes a raw datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}
	return s.write(data)
}

func (s *UDPSender) write(data []byte) error {
	n, err := s.conn.Write(data)
	if err != nil {
		metrics.TransportErrorsTotal.Inc()
		log.Warnf("UDPSender: write to %s failed: %v", s.target, err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.written += uint64(n)
	return nil
}

// Stats returns the last sequence number sent and the total bytes written.
func (s *UDPSender) Stats() (seq uint32, written uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, s.written
}

// Close closes the socket. Further sends fail with ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	log.Infof("UDPSender: Closing after %d packets to %s", s.seq, s.target)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ interface{ Close() error } = (*UDPSender)(nil)
