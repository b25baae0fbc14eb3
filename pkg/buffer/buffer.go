// Package buffer implements the cursor-managed byte buffers used by the TLS
// session driver.
//
// A Buffer is a single contiguous region with an explicit read cursor and
// write cursor:
//
//	0 <= r <= w <= cap
//
// Bytes in [r, w) are the unread region. Bytes in [w, cap) are free space.
// Producers write into Space() and Commit; consumers read from Bytes() and
// Advance. Clear, Compact, and an Advance that empties the unread region
// are the only operations that move cursors backwards.
package buffer

// Buffer is a byte buffer with separate read and write cursors.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	data []byte
	r    int
	w    int
}

// New creates an empty buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Wrap creates a buffer whose unread region is p.
// The buffer takes ownership of p and has no free space.
func Wrap(p []byte) *Buffer {
	return &Buffer{data: p, w: len(p)}
}

// Cap returns the total capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Readable returns the number of unread bytes.
func (b *Buffer) Readable() int {
	return b.w - b.r
}

// HasReadable reports whether any unread bytes remain.
func (b *Buffer) HasReadable() bool {
	return b.w > b.r
}

// Writable returns the number of bytes that can be written without
// compacting or growing.
func (b *Buffer) Writable() int {
	return len(b.data) - b.w
}

// Bytes returns the unread region. The slice aliases the buffer and is
// only valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.data[b.r:b.w]
}

// Space returns the free region after the write cursor. Callers fill a
// prefix of it and then call Commit.
func (b *Buffer) Space() []byte {
	return b.data[b.w:]
}

// Commit marks n bytes of Space as written.
func (b *Buffer) Commit(n int) {
	if n < 0 || n > b.Writable() {
		panic(ErrCursorRange)
	}
	b.w += n
}

// Advance marks n unread bytes as consumed.
func (b *Buffer) Advance(n int) {
	if n < 0 || n > b.Readable() {
		panic(ErrCursorRange)
	}
	b.r += n
	if b.r == b.w {
		b.r, b.w = 0, 0
	}
}

// Read copies unread bytes into p and consumes them.
func (b *Buffer) Read(p []byte) int {
	n := copy(p, b.data[b.r:b.w])
	b.Advance(n)
	return n
}

// Write appends as much of p as fits into free space, compacting first
// when that makes room. It returns the number of bytes written.
func (b *Buffer) Write(p []byte) int {
	if len(p) > b.Writable() && b.r > 0 {
		b.Compact()
	}
	n := copy(b.data[b.w:], p)
	b.w += n
	return n
}

// Clear discards all unread bytes and resets both cursors.
func (b *Buffer) Clear() {
	b.r, b.w = 0, 0
}

// Compact moves the unread region to the start of the buffer so all free
// space is contiguous after it.
func (b *Buffer) Compact() {
	if b.r == 0 {
		return
	}
	n := copy(b.data, b.data[b.r:b.w])
	b.r, b.w = 0, n
}

// Grow reallocates the buffer to at least min bytes of capacity, keeping
// the unread region. It is a no-op when the buffer is already large enough.
func (b *Buffer) Grow(min int) {
	if min <= len(b.data) {
		return
	}
	data := make([]byte, min)
	n := copy(data, b.data[b.r:b.w])
	b.data, b.r, b.w = data, 0, n
}

// Reserve ensures at least n bytes of free space, compacting and then
// growing as needed.
func (b *Buffer) Reserve(n int) {
	if b.Writable() >= n {
		return
	}
	b.Compact()
	if b.Writable() >= n {
		return
	}
	b.Grow(b.w + n)
}
