package enginetest

import (
	"encoding/binary"
	"errors"
)

// Record content types. The values follow TLS so captured traffic reads
// naturally in a hex dump.
const (
	recordAlert     byte = 21
	recordHandshake byte = 22
	recordData      byte = 23
	recordKeyUpdate byte = 24
)

// HeaderLen is the size of a stub record header: type, two version bytes,
// and a big-endian payload length.
const HeaderLen = 5

var errShortRecord = errors.New("enginetest: short record")

func appendRecord(dst []byte, typ byte, payload []byte) []byte {
	var hdr [HeaderLen]byte
	hdr[0] = typ
	hdr[1], hdr[2] = 3, 3
	binary.BigEndian.PutUint16(hdr[3:], uint16(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// parseRecord splits the first complete record off p. It returns
// errShortRecord when p does not hold one yet.
func parseRecord(p []byte) (typ byte, payload []byte, size int, err error) {
	if len(p) < HeaderLen {
		return 0, nil, 0, errShortRecord
	}
	n := int(binary.BigEndian.Uint16(p[3:5]))
	if len(p) < HeaderLen+n {
		return 0, nil, 0, errShortRecord
	}
	return p[0], p[HeaderLen : HeaderLen+n], HeaderLen + n, nil
}

func xor(dst, src []byte, key byte) {
	for i, c := range src {
		dst[i] = c ^ key
	}
}
