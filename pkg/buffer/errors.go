package buffer

import "errors"

// Buffer errors.
var (
	// ErrCursorRange is raised when Commit or Advance would move a cursor
	// outside the buffer. It indicates a programming error.
	ErrCursorRange = errors.New("buffer: cursor out of range")
)
