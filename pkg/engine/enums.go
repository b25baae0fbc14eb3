package engine

// Role identifies which side of the handshake an engine plays.
type Role int

const (
	// RoleUnknown is the zero value before the role is chosen.
	RoleUnknown Role = iota
	// RoleClient sends the first handshake flight.
	RoleClient
	// RoleServer answers the client's first flight.
	RoleServer
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// IsValid returns true if the role is client or server.
func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleServer
}

// HandshakeStatus is the engine's hint about what the caller must do next
// to advance the handshake.
type HandshakeStatus int

const (
	// NotHandshaking means no handshake is in progress.
	NotHandshaking HandshakeStatus = iota
	// NeedWrap means the engine has handshake data to send.
	NeedWrap
	// NeedUnwrap means the engine needs data from the peer.
	NeedUnwrap
	// NeedTask means delegated tasks must run before the handshake can
	// continue.
	NeedTask
	// Finished is reported once, by the call that completed the handshake.
	Finished
)

// String returns the string representation of the handshake status.
func (s HandshakeStatus) String() string {
	switch s {
	case NotHandshaking:
		return "NOT_HANDSHAKING"
	case NeedWrap:
		return "NEED_WRAP"
	case NeedUnwrap:
		return "NEED_UNWRAP"
	case NeedTask:
		return "NEED_TASK"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the status is one of the defined values.
func (s HandshakeStatus) IsValid() bool {
	return s >= NotHandshaking && s <= Finished
}

// Status is the outcome of a single Wrap or Unwrap call.
type Status int

const (
	// StatusOK means the call completed normally.
	StatusOK Status = iota
	// StatusBufferUnderflow means the source did not hold a complete record.
	StatusBufferUnderflow
	// StatusBufferOverflow means the destination had no room for the output.
	StatusBufferOverflow
	// StatusClosed means the engine direction used by the call is closed.
	StatusClosed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBufferUnderflow:
		return "BUFFER_UNDERFLOW"
	case StatusBufferOverflow:
		return "BUFFER_OVERFLOW"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
