package waiter

import "errors"

// Waiter errors.
var (
	// ErrWouldBlockRead is returned in non-blocking mode when the channel
	// is not readable. It is a retry signal, not a failure.
	ErrWouldBlockRead = errors.New("read would block")

	// ErrWouldBlockWrite is returned in non-blocking mode when the channel
	// is not writable. It is a retry signal, not a failure.
	ErrWouldBlockWrite = errors.New("write would block")

	// ErrInterrupted is returned when the waiting context is cancelled.
	ErrInterrupted = errors.New("waiter: interrupted")

	// ErrTimeout is returned when the waiter deadline passes.
	ErrTimeout = errors.New("waiter: deadline exceeded")
)

// IsWouldBlock reports whether err is one of the would-block signals.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlockRead) || errors.Is(err, ErrWouldBlockWrite)
}
