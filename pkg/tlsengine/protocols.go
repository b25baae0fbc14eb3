package tlsengine

import (
	"crypto/tls"
	"fmt"
)

var protocolVersions = map[string]uint16{
	"TLSv1":   tls.VersionTLS10,
	"TLSv1.1": tls.VersionTLS11,
	"TLSv1.2": tls.VersionTLS12,
	"TLSv1.3": tls.VersionTLS13,
}

// ProtocolVersion maps a protocol name such as "TLSv1.2" to its wire
// version.
func ProtocolVersion(name string) (uint16, error) {
	v, ok := protocolVersions[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	return v, nil
}

// ProtocolName maps a wire version to its protocol name.
func ProtocolName(version uint16) string {
	for name, v := range protocolVersions {
		if v == version {
			return name
		}
	}
	return fmt.Sprintf("unknown(%#04x)", version)
}

// versionRange returns the min and max versions covering names. An empty
// list leaves both at zero, meaning crypto/tls defaults.
func versionRange(names []string) (minVersion, maxVersion uint16, err error) {
	for _, name := range names {
		v, err := ProtocolVersion(name)
		if err != nil {
			return 0, 0, err
		}
		if minVersion == 0 || v < minVersion {
			minVersion = v
		}
		if v > maxVersion {
			maxVersion = v
		}
	}
	return minVersion, maxVersion, nil
}
