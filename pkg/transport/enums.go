package transport

// TransportType identifies the transport carrying a channel.
type TransportType int

const (
	// TransportTypeUnknown is the zero value for unknown transport.
	TransportTypeUnknown TransportType = iota
	// TransportTypeTCP indicates a TCP connection.
	TransportTypeTCP
	// TransportTypePipe indicates an in-memory pipe endpoint.
	TransportTypePipe
)

// String returns the string representation of the transport type.
func (t TransportType) String() string {
	switch t {
	case TransportTypeTCP:
		return "TCP"
	case TransportTypePipe:
		return "Pipe"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the transport type is a known valid type.
func (t TransportType) IsValid() bool {
	return t == TransportTypeTCP || t == TransportTypePipe
}
