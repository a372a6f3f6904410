// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "spectrallog/internal/log"
	"spectrallog/internal/transport"
)

// HeaderSize is the length of the fixed packet header in bytes.
const HeaderSize = 4 + 8 + 8 + 2 + 2

// ErrShortPacket is returned by Unpack for a truncated packet.
var ErrShortPacket = errors.New("udp: short packet")

// Source is where the publisher takes snapshots from. transport.Latest
// implements it.
type Source interface {
	Snapshot() (*transport.Snapshot, bool)
}

// UDPPublisher periodically fetches the latest snapshot, packs it into a
// defined binary format and sends it over UDP using a UDPSender. A snapshot
// is sent once; ticks without a new cycle send nothing.
type UDPPublisher struct {
	sender   *UDPSender
	source   Source
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	lastCycle uint64
	sentAny   bool
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 100ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source Source) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: snapshot source cannot be nil")
	}

	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Cycle             | uint64         | 8            | Cycle of the snapshot   |
| First Bin         | uint16         | 2            | Index of Averages[0]    |
| Average Count     | uint16         | 2            | Number of floats (N)    |
| Averages          | []float32      | N * 4        | Running bin averages    |
+-----------------------------------------------------------------------------+
*/

// Pack appends the packet for s with sequence number seq to buf.
func Pack(buf *bytes.Buffer, seq uint32, s *transport.Snapshot) error {
	fields := []any{
		seq,
		s.Timestamp.UnixNano(),
		s.Cycle,
		uint16(s.FirstBin),
		uint16(len(s.Averages)),
		s.Averages,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// Unpack decodes a packet produced by Pack. Counts and the run id are not
// carried on the wire.
func Unpack(data []byte) (uint32, *transport.Snapshot, error) {
	if len(data) < HeaderSize {
		return 0, nil, ErrShortPacket
	}
	seq := binary.BigEndian.Uint32(data[0:])
	ts := int64(binary.BigEndian.Uint64(data[4:]))
	s := &transport.Snapshot{
		Timestamp: time.Unix(0, ts),
		Cycle:     binary.BigEndian.Uint64(data[12:]),
		FirstBin:  int(binary.BigEndian.Uint16(data[20:])),
	}
	n := int(binary.BigEndian.Uint16(data[22:]))
	if len(data) < HeaderSize+4*n {
		return 0, nil, ErrShortPacket
	}
	s.Averages = make([]float32, n)
	if err := binary.Read(bytes.NewReader(data[HeaderSize:]), binary.BigEndian, s.Averages); err != nil {
		return 0, nil, err
	}
	return seq, s, nil
}

// publish sends the latest snapshot if it has not been sent yet.
func (p *UDPPublisher) publish() {
	s, ok := p.source.Snapshot()
	if !ok || (p.sentAny && s.Cycle == p.lastCycle) {
		return
	}

	if err := p.sender.SendSnapshot(s); err != nil {
		if !errors.Is(err, ErrSenderClosed) {
			applog.Errorf("UDPPublisher: %v", err)
		}
		return
	}
	p.lastCycle = s.Cycle
	p.sentAny = true
	seq, _ := p.sender.Stats()
	applog.Debugf("UDPPublisher: Sent cycle %d as packet %d", s.Cycle, seq)
}

// Close implements the io.Closer interface. It stops the publisher goroutine
// and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
