package ssl

import (
	"fmt"
	"strings"
)

// Kind classifies an *Error.
type Kind uint8

const (
	// KindHandshake is a handshake failure. It is fatal for the session.
	KindHandshake Kind = iota
	// KindIO is a raw channel failure.
	KindIO
	// KindProtocol is a record failure after the handshake.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// VerifyMode is the peer verification bitmask.
type VerifyMode uint8

const (
	// VerifyNone skips peer verification.
	VerifyNone VerifyMode = 0
	// VerifyPeer verifies the peer chain; servers request a client
	// certificate.
	VerifyPeer VerifyMode = 1 << 0
	// VerifyFailIfNoPeerCert makes servers require a client certificate.
	VerifyFailIfNoPeerCert VerifyMode = 1 << 1
	// VerifyClientOnce is accepted for compatibility and has no effect.
	VerifyClientOnce VerifyMode = 1 << 2
)

// Has reports whether all bits of o are set in m.
func (m VerifyMode) Has(o VerifyMode) bool {
	return m&o == o
}

func (m VerifyMode) String() string {
	if m == VerifyNone {
		return "none"
	}
	s := ""
	for _, f := range []struct {
		bit  VerifyMode
		name string
	}{
		{VerifyPeer, "peer"},
		{VerifyFailIfNoPeerCert, "fail-if-no-peer-cert"},
		{VerifyClientOnce, "client-once"},
	} {
		if m.Has(f.bit) {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	return s
}

var verifyModeNames = map[string]VerifyMode{
	"none":                 VerifyNone,
	"peer":                 VerifyPeer,
	"require":              VerifyPeer | VerifyFailIfNoPeerCert,
	"fail-if-no-peer-cert": VerifyFailIfNoPeerCert,
	"client-once":          VerifyClientOnce,
}

// ParseVerifyMode parses "none", "peer", "require" (peer plus
// fail-if-no-peer-cert), or a "|" separated list as printed by String.
func ParseVerifyMode(s string) (VerifyMode, error) {
	var m VerifyMode
	for _, name := range strings.Split(s, "|") {
		bit, ok := verifyModeNames[strings.TrimSpace(strings.ToLower(name))]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownVerifyMode, s)
		}
		m |= bit
	}
	return m, nil
}

// State is the driver phase reported by Socket.State.
type State uint8

const (
	// StateIdle means connect or accept has not been called.
	StateIdle State = iota
	// StateHandshaking means the initial handshake is in progress.
	StateHandshaking
	// StateEstablished means application data can flow.
	StateEstablished
	// StateClosed means Close was called.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
