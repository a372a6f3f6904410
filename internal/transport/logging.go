// SPDX-License-Identifier: MIT
package transport

import (
	"spectrallog/internal/log"
)

// LoggingTransport implements the Transport interface by logging each
// snapshot at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the averages of s.
func (lt *LoggingTransport) Send(s *Snapshot) error {
	log.Debugf("Transport: cycle %d bins %d..%d averages %v (persisted: %v)",
		s.Cycle, s.FirstBin, s.FirstBin+len(s.Averages)-1, s.Averages, s.Persisted)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
