package engine

import "errors"

// Engine errors.
var (
	// ErrHandshakeFailed is wrapped by engines when the handshake cannot
	// complete (alert received, verification failed, protocol mismatch).
	ErrHandshakeFailed = errors.New("engine: handshake failed")

	// ErrRecord is wrapped by engines when a record cannot be processed
	// after the handshake.
	ErrRecord = errors.New("engine: bad record")

	// ErrTruncated is returned by CloseInbound when the peer did not send
	// a closing message before the transport ended.
	ErrTruncated = errors.New("engine: inbound closed before close notification")

	// ErrNotBegun is returned when an operation needs BeginHandshake first.
	ErrNotBegun = errors.New("engine: handshake not begun")

	// ErrNoCipherMatch is returned when a cipher string selects no
	// supported suite.
	ErrNoCipherMatch = errors.New("engine: no cipher match")

	// ErrNoProvider is returned when a configuration names no provider.
	ErrNoProvider = errors.New("engine: no provider configured")
)
