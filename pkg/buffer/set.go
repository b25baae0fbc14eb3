package buffer

// Set holds the four buffers owned by one TLS session.
//
//   - NetIn: ciphertext read from the channel, waiting to be unwrapped.
//   - NetOut: ciphertext produced by wrap, waiting to be flushed.
//   - AppIn: plaintext produced by unwrap, waiting to be read.
//   - Empty: zero-length source for wraps that carry no application data.
type Set struct {
	NetIn  *Buffer
	NetOut *Buffer
	AppIn  *Buffer
	Empty  *Buffer
}

// NewSet allocates a buffer set. packetSize sizes both ciphertext buffers
// and appSize sizes the plaintext buffer.
func NewSet(packetSize, appSize int) *Set {
	return &Set{
		NetIn:  New(packetSize),
		NetOut: New(packetSize),
		AppIn:  New(appSize),
		Empty:  New(0),
	}
}

// Grow raises buffer capacities to the given hints, preserving unread
// bytes. Buffers already at or above the hint are left alone.
func (s *Set) Grow(packetSize, appSize int) {
	s.NetIn.Grow(packetSize)
	s.NetOut.Grow(packetSize)
	s.AppIn.Grow(appSize)
}

// Release drops all buffer memory. The set must not be used afterwards.
func (s *Set) Release() {
	s.NetIn = nil
	s.NetOut = nil
	s.AppIn = nil
	s.Empty = nil
}
