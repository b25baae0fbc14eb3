// Package engine defines the record-layer security engine consumed by the
// TLS session driver.
//
// An Engine performs the handshake and record protection for one
// connection but never touches the network. The driver moves ciphertext
// between the engine and the channel:
//
//	app bytes --Wrap--> ciphertext --> channel
//	channel --> ciphertext --Unwrap--> app bytes
//
// The driver decides what to do next from the HandshakeStatus reported by
// every call. Engines are not safe for concurrent use.
package engine

import (
	"crypto/x509"

	"github.com/backkem/ossl/pkg/buffer"
)

// Result reports the outcome of a Wrap or Unwrap call.
type Result struct {
	// Status is the outcome of the call.
	Status Status

	// HandshakeStatus is the next action the engine needs.
	HandshakeStatus HandshakeStatus

	// BytesConsumed is the number of source bytes consumed.
	BytesConsumed int

	// BytesProduced is the number of bytes written to the destination.
	BytesProduced int
}

// Task is a unit of deferred engine work. Tasks run synchronously on the
// caller's goroutine.
type Task func()

// VerifyFunc is consulted by an engine when the peer presents its
// certificate chain (possibly empty). A non-nil error rejects the peer and
// fails the handshake.
type VerifyFunc func(chain []*x509.Certificate) error

// SessionInfo describes the negotiated session.
type SessionInfo struct {
	// PacketBufferSize is the largest ciphertext a single Wrap can emit or
	// a single Unwrap needs to see.
	PacketBufferSize int

	// ApplicationBufferSize is the largest plaintext a single Unwrap can
	// produce.
	ApplicationBufferSize int

	// CipherSuite is the negotiated suite name, empty before negotiation.
	CipherSuite string

	// Protocol is the negotiated protocol name (e.g. "TLSv1.3").
	Protocol string

	// PeerCertificates is the chain presented by the peer, leaf first.
	PeerCertificates []*x509.Certificate

	// LocalCertificates is the chain sent to the peer, leaf first.
	LocalCertificates []*x509.Certificate
}

// Engine is a stateful handshake and record-protection engine bound to a
// single connection.
type Engine interface {
	// SetUseClientMode selects the handshake role. It must be called before
	// BeginHandshake.
	SetUseClientMode(client bool)

	// SetWantClientAuth asks a server engine to request a client
	// certificate without requiring one.
	SetWantClientAuth(want bool)

	// SetNeedClientAuth makes a server engine require a client certificate.
	SetNeedClientAuth(need bool)

	// BeginHandshake starts the handshake.
	BeginHandshake() error

	// HandshakeStatus returns the current handshake status.
	HandshakeStatus() HandshakeStatus

	// Wrap protects application bytes from src into dst. Pending handshake
	// or closing messages are emitted before any application data.
	Wrap(src, dst *buffer.Buffer) (Result, error)

	// Unwrap consumes ciphertext from src and writes any plaintext to dst.
	Unwrap(src, dst *buffer.Buffer) (Result, error)

	// DelegatedTasks returns the tasks that must run before the handshake
	// can continue. The returned tasks are removed from the engine.
	DelegatedTasks() []Task

	// CloseInbound signals that no more ciphertext will arrive.
	CloseInbound() error

	// CloseOutbound starts the closing handshake.
	CloseOutbound()

	// IsInboundDone reports whether Unwrap will produce no more data.
	IsInboundDone() bool

	// IsOutboundDone reports whether Wrap will produce no more data.
	IsOutboundDone() bool

	// Session returns information about the current session.
	Session() SessionInfo
}

// Params configures a new Engine.
type Params struct {
	// Role is the handshake role. Engines also accept SetUseClientMode
	// before BeginHandshake.
	Role Role

	// PeerHost is the server name hint. Empty disables SNI.
	PeerHost string

	// PeerPort is the peer's port, used as a session-cache hint.
	PeerPort int

	// CipherSuites is the ordered list of suite names to enable. Empty
	// means the engine's defaults.
	CipherSuites []string

	// Protocols is the list of protocol names to enable ("TLSv1.2",
	// "TLSv1.3"). Empty means the engine's defaults.
	Protocols []string

	// Verify is consulted with the peer chain. Nil accepts any peer.
	Verify VerifyFunc
}

// Provider creates engines. A provider is passed explicitly to the code
// that needs one; there is no process-wide registry.
type Provider interface {
	// NewEngine creates an engine for one connection.
	NewEngine(params Params) (Engine, error)

	// CipherSuites lists the suites this provider can negotiate, in
	// preference order. Cipher strings are matched against this list.
	CipherSuites() []CipherSuite
}
