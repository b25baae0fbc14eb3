// Package channel provides the raw byte channels the TLS session driver
// runs on.
//
// A Channel never blocks in Read or Write: both move what they can and
// return immediately. Callers that need to wait use Ready and Register
// (see pkg/waiter). Two implementations are provided:
//   - NewPair: two in-memory endpoints joined back to back
//   - FromConn: any net.Conn, adapted with reader and writer pump goroutines
package channel

import (
	"fmt"
	"net"
	"time"

	"github.com/pion/logging"
)

// Channel is a non-blocking duplex byte stream with readiness
// notification.
type Channel interface {
	// Read copies available bytes into p. It returns (0, nil) when no bytes
	// are available yet, and io.EOF once the peer finished writing and all
	// bytes were read.
	Read(p []byte) (int, error)

	// Write queues as much of p as fits and returns the count. It returns
	// (0, nil) when the channel is full.
	Write(p []byte) (int, error)

	// CloseWrite signals end-of-stream to the peer after queued bytes.
	CloseWrite() error

	// Close releases the channel. Subsequent calls return ErrClosed.
	Close() error

	// Ready returns the subset of interest that is satisfied right now.
	Ready(interest Interest) Interest

	// Register returns a registration that is signalled whenever readiness
	// may have changed. The caller must Cancel it.
	Register(interest Interest) *Registration

	// IsOpen reports whether Close has not been called.
	IsOpen() bool

	// LocalAddr returns the local address.
	LocalAddr() net.Addr

	// RemoteAddr returns the peer address.
	RemoteAddr() net.Addr
}

// Config configures channel endpoints.
type Config struct {
	// Capacity is the number of bytes buffered per direction.
	// Default: 64 KiB.
	Capacity int

	// ReadChunk is the read size used by the FromConn reader pump.
	// Default: 16 KiB.
	ReadChunk int

	// Linger bounds how long Close waits for queued outbound bytes to
	// reach a wrapped net.Conn. Default: 1s.
	Linger time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:  64 * 1024,
		ReadChunk: 16 * 1024,
		Linger:    time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.ReadChunk <= 0 {
		c.ReadChunk = d.ReadChunk
	}
	if c.Linger <= 0 {
		c.Linger = d.Linger
	}
	return c
}

// PairAddr implements net.Addr for in-memory pair endpoints.
type PairAddr struct {
	ID   int // Endpoint ID (0 or 1)
	Port int // Logical port number
}

// Network returns "pair".
func (a PairAddr) Network() string { return "pair" }

// String returns a string representation of the address.
func (a PairAddr) String() string { return fmt.Sprintf("pair:%d:%d", a.ID, a.Port) }

// PortOf extracts a port number from common address types. It returns 0
// when the address carries no port.
func PortOf(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.Port
	case *net.UDPAddr:
		return a.Port
	case PairAddr:
		return a.Port
	default:
		return 0
	}
}
