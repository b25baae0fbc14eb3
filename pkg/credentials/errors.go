package credentials

import "errors"

// Credential errors.
var (
	// ErrNoCertificate indicates a PEM input held no CERTIFICATE block.
	ErrNoCertificate = errors.New("credentials: no certificate in PEM data")

	// ErrUnsupportedKey indicates a key type that cannot be generated or
	// encoded.
	ErrUnsupportedKey = errors.New("credentials: unsupported key type")

	// ErrNotAuthority indicates issuing from a certificate that is not a CA.
	ErrNotAuthority = errors.New("credentials: certificate is not a CA")

	// ErrInvalidValidity indicates NotAfter does not follow NotBefore.
	ErrInvalidValidity = errors.New("credentials: invalid validity period")
)
