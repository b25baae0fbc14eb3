package tlsengine

import "errors"

// Engine adapter errors.
var (
	// ErrUnknownProtocol is returned for an unrecognized protocol name.
	ErrUnknownProtocol = errors.New("tlsengine: unknown protocol")

	// ErrNotTLS is returned when inbound bytes do not look like a TLS record.
	ErrNotTLS = errors.New("tlsengine: not a TLS record")

	// ErrRecordOverflow is returned when a record header announces more
	// than the protocol maximum.
	ErrRecordOverflow = errors.New("tlsengine: record overflow")

	// ErrNoClientCertificate is returned when client authentication is
	// required and the client sent no certificate.
	ErrNoClientCertificate = errors.New("tlsengine: client sent no certificate")
)
