package channel

import "errors"

// Channel errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed channel.
	ErrClosed = errors.New("channel: closed")

	// ErrWriteClosed is returned by Write after CloseWrite.
	ErrWriteClosed = errors.New("channel: write side closed")

	// ErrPeerClosed is returned by Write when the receiving side is gone.
	ErrPeerClosed = errors.New("channel: broken pipe")

	// ErrUnflushed is returned by Close when queued outbound bytes could
	// not be delivered within the linger period.
	ErrUnflushed = errors.New("channel: outbound bytes not flushed before close")
)
