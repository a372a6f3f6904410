// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"time"

	"spectrallog/internal/log"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseConfig holds the connection settings of the history database.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

const createAveragesTable = `
	CREATE TABLE IF NOT EXISTS spectral_averages (
		timestamp DateTime64(3),
		run_id String,
		cycle UInt64,
		bin UInt16,
		average Float32,
		count UInt64,
		persisted UInt8
	) ENGINE = MergeTree()
	ORDER BY (run_id, cycle, bin)
`

const insertAverage = `
	INSERT INTO spectral_averages (timestamp, run_id, cycle, bin, average, count, persisted)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// execer is the part of the ClickHouse connection the transport uses.
type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// ClickHouseTransport keeps the history of every tracked bin's average, one
// row per bin per cycle.
type ClickHouseTransport struct {
	conn    execer
	closer  func() error
	timeout time.Duration
}

// NewClickHouseTransport connects, pings and creates the table if needed.
func NewClickHouseTransport(cfg ClickHouseConfig) (*ClickHouseTransport, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	t := newClickHouseTransport(conn, cfg.Timeout)
	t.closer = conn.Close

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := t.initSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Infof("ClickHouseTransport: Connected to %s", cfg.Addr)
	return t, nil
}

func newClickHouseTransport(conn execer, timeout time.Duration) *ClickHouseTransport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ClickHouseTransport{conn: conn, timeout: timeout}
}

func (t *ClickHouseTransport) initSchema(ctx context.Context) error {
	if err := t.conn.Exec(ctx, createAveragesTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Send inserts one row per tracked bin.
func (t *ClickHouseTransport) Send(s *Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	persisted := uint8(0)
	if s.Persisted {
		persisted = 1
	}
	for i, avg := range s.Averages {
		var count uint64
		if i < len(s.Counts) {
			count = s.Counts[i]
		}
		err := t.conn.Exec(ctx, insertAverage,
			s.Timestamp,
			s.RunID,
			s.Cycle,
			uint16(s.FirstBin+i),
			avg,
			count,
			persisted,
		)
		if err != nil {
			return fmt.Errorf("failed to insert average of bin %d: %w", s.FirstBin+i, err)
		}
	}
	return nil
}

// Close closes the connection.
func (t *ClickHouseTransport) Close() error {
	if t.closer != nil {
		return t.closer()
	}
	return nil
}

var _ Transport = (*ClickHouseTransport)(nil)
