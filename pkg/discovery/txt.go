package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXT record keys published with an echo endpoint.
const (
	// TXTKeyProtocols lists the enabled protocol names, comma separated.
	TXTKeyProtocols = "P"

	// TXTKeyClientAuth is "1" when the server requires a client certificate.
	TXTKeyClientAuth = "CA"

	// TXTKeyHostname is the name the server certificate is issued for.
	TXTKeyHostname = "HN"

	// TXTKeyVersion is the software version of the advertising node.
	TXTKeyVersion = "V"
)

// MaxTXTValueLength bounds a single TXT value. A DNS TXT string holds at
// most 255 bytes including the key and separator.
const MaxTXTValueLength = 200

// EchoTXT describes what an echo server offers.
type EchoTXT struct {
	// Protocols are the protocol names the server enables, e.g. "TLSv1.3".
	Protocols []string

	// ClientAuth is set when the server requires a client certificate.
	ClientAuth bool

	// Hostname is the name clients should verify, when it differs from
	// the mDNS host name.
	Hostname string

	// Version is the software version.
	Version string
}

// Encode returns the TXT record strings. Empty fields are omitted.
func (e *EchoTXT) Encode() []string {
	var records []string
	if len(e.Protocols) > 0 {
		records = append(records, TXTKeyProtocols+"="+strings.Join(e.Protocols, ","))
	}
	if e.ClientAuth {
		records = append(records, TXTKeyClientAuth+"=1")
	}
	if e.Hostname != "" {
		records = append(records, TXTKeyHostname+"="+e.Hostname)
	}
	if e.Version != "" {
		records = append(records, TXTKeyVersion+"="+e.Version)
	}
	return records
}

// Validate checks that every encoded record fits in a TXT string.
func (e *EchoTXT) Validate() error {
	for _, r := range e.Encode() {
		if len(r) > MaxTXTValueLength {
			return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidTXTRecord, r[:strings.IndexByte(r, '=')], MaxTXTValueLength)
		}
	}
	return nil
}

// ParseTXT parses raw TXT record strings into a map.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			key := record[:idx]
			value := record[idx+1:]
			result[key] = value
		}
	}
	return result
}

// ParseEchoTXT parses raw TXT records into EchoTXT. Unknown keys are
// ignored.
func ParseEchoTXT(records []string) (*EchoTXT, error) {
	m := ParseTXT(records)
	txt := &EchoTXT{
		Hostname: m[TXTKeyHostname],
		Version:  m[TXTKeyVersion],
	}

	if v, ok := m[TXTKeyProtocols]; ok && v != "" {
		txt.Protocols = strings.Split(v, ",")
	}

	if v, ok := m[TXTKeyClientAuth]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyClientAuth, v)
		}
		txt.ClientAuth = b
	}

	return txt, nil
}
