package credentials

// KeyType selects the key algorithm for generated certificates.
type KeyType uint8

const (
	// KeyECDSAP256 is ECDSA over NIST P-256.
	KeyECDSAP256 KeyType = iota
	// KeyRSA2048 is 2048-bit RSA.
	KeyRSA2048
	// KeyEd25519 is Ed25519.
	KeyEd25519
)

func (k KeyType) String() string {
	switch k {
	case KeyECDSAP256:
		return "ecdsa-p256"
	case KeyRSA2048:
		return "rsa-2048"
	case KeyEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// IsValid returns true if this is a known key type.
func (k KeyType) IsValid() bool {
	return k <= KeyEd25519
}

// ParseKeyType maps a String() value back to a KeyType.
func ParseKeyType(s string) (KeyType, error) {
	for k := KeyECDSAP256; k.IsValid(); k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, ErrUnsupportedKey
}
