package ssl

import (
	"errors"
	"fmt"

	"github.com/backkem/ossl/pkg/engine"
	"github.com/backkem/ossl/pkg/waiter"
)

// Would-block signals. They are retry hints for the non-blocking variants,
// not failures.
var (
	ErrWouldBlockRead  = waiter.ErrWouldBlockRead
	ErrWouldBlockWrite = waiter.ErrWouldBlockWrite
)

// Session errors.
var (
	// ErrHandshake matches every *Error of KindHandshake via errors.Is.
	ErrHandshake = errors.New("ssl: handshake failed")

	// ErrReadDuringHandshake is returned by reads before the initial
	// handshake has finished.
	ErrReadDuringHandshake = errors.New("ssl: reading not possible during handshake")

	// ErrWriteDuringHandshake is returned by writes before the initial
	// handshake has finished.
	ErrWriteDuringHandshake = errors.New("ssl: writing not possible during handshake")

	// ErrNotStarted is returned when an operation needs a session that
	// connect or accept has not created yet.
	ErrNotStarted = errors.New("ssl: session not started")

	// ErrAlreadyStarted is returned when a setting can no longer change.
	ErrAlreadyStarted = errors.New("ssl: session already started")

	// ErrClosedStream is returned when the session or its channel is
	// closed.
	ErrClosedStream = errors.New("ssl: closed stream")

	// ErrWrongRole is returned when the context method does not allow the
	// requested role.
	ErrWrongRole = errors.New("ssl: called a function you should not call")

	// ErrUnknownMethod is returned for an unrecognized context version.
	ErrUnknownMethod = errors.New("ssl: unknown SSL method")

	// ErrUnknownVerifyMode is returned by ParseVerifyMode.
	ErrUnknownVerifyMode = errors.New("ssl: unknown verify mode")

	// ErrNoCipherMatch is returned when the cipher string selects nothing.
	ErrNoCipherMatch = engine.ErrNoCipherMatch

	// ErrPeerCertificateMissing is returned by verification when a peer
	// certificate is required but none was sent.
	ErrPeerCertificateMissing = errors.New("ssl: peer did not return a certificate")

	// ErrNegativeSize is returned by the sized reads for n < 0.
	ErrNegativeSize = errors.New("ssl: negative read size")

	errSocketClosed = errors.New("ssl: socket closed")
)

// IsWouldBlock reports whether err is a would-block signal.
func IsWouldBlock(err error) bool {
	return waiter.IsWouldBlock(err)
}

// Error is a session failure.
type Error struct {
	// Op is the operation that failed ("connect", "read", ...).
	Op string
	// Kind classifies the failure.
	Kind Kind
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ssl: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrHandshake) match handshake failures.
func (e *Error) Is(target error) bool {
	return target == ErrHandshake && e.Kind == KindHandshake
}
