package tlsengine

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// Record sizes from RFC 5246 section 6.2 and RFC 8446 section 5.
const (
	recordHeaderLen    = 5
	maxPlaintext       = 16384
	maxCiphertextBonus = 2048

	// PacketBufferSize is the largest record a peer may send, header
	// included.
	PacketBufferSize = recordHeaderLen + maxPlaintext + maxCiphertextBonus

	// ApplicationBufferSize is the largest plaintext a record carries.
	ApplicationBufferSize = maxPlaintext
)

// TLS record content types.
const (
	contentChangeCipherSpec uint8 = 20
	contentAlert            uint8 = 21
	contentHandshake        uint8 = 22
	contentApplicationData  uint8 = 23
	contentHeartbeat        uint8 = 24
)

// recordSize returns the size of the first complete record in p. ok is
// false when p holds only part of a record.
func recordSize(p []byte) (size int, ok bool, err error) {
	s := cryptobyte.String(p)

	var typ uint8
	var version, length uint16
	if !s.ReadUint8(&typ) {
		return 0, false, nil
	}
	if typ < contentChangeCipherSpec || typ > contentHeartbeat {
		return 0, false, fmt.Errorf("%w: content type %d", ErrNotTLS, typ)
	}
	if !s.ReadUint16(&version) {
		return 0, false, nil
	}
	if version>>8 != 3 {
		return 0, false, fmt.Errorf("%w: version %#04x", ErrNotTLS, version)
	}
	if !s.ReadUint16(&length) {
		return 0, false, nil
	}
	if int(length) > maxPlaintext+maxCiphertextBonus {
		return 0, false, fmt.Errorf("%w: %d bytes", ErrRecordOverflow, length)
	}

	var body cryptobyte.String
	if !s.ReadBytes((*[]byte)(&body), int(length)) {
		return 0, false, nil
	}
	return recordHeaderLen + int(length), true, nil
}
