// Package ssl drives a record-layer security engine over a raw byte
// channel.
//
// A Socket owns one channel.Channel and, from the first Connect or Accept
// on, one engine.Engine plus the four buffers the engine reads from and
// writes to. The handshake driver calls the engine and the readiness
// waiter until the handshake finishes; afterwards Read and Write move
// application data through Unwrap and Wrap.
//
// Every operation has a blocking and a non-blocking variant. Non-blocking
// variants never suspend: when the channel is not ready they return
// ErrWouldBlockRead or ErrWouldBlockWrite and the caller retries the same
// operation later.
//
// A Socket is not safe for concurrent use. Exactly one operation may be in
// flight at a time.
package ssl

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/backkem/ossl/pkg/buffer"
	"github.com/backkem/ossl/pkg/channel"
	"github.com/backkem/ossl/pkg/engine"
	"github.com/backkem/ossl/pkg/waiter"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Config configures a Socket.
type Config struct {
	// Hostname is the server name hint sent by clients and checked when
	// the context enables VerifyHostname.
	Hostname string

	// SyncClose closes the channel when the socket is closed.
	SyncClose bool

	// LoggerFactory is the factory for creating loggers. If nil, the
	// context's factory is used; if both are nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns the default socket configuration.
func DefaultConfig() Config {
	return Config{
		SyncClose: true,
	}
}

// Socket is a TLS session over a raw channel.
type Socket struct {
	id     uuid.UUID
	ch     channel.Channel
	ctx    *Context
	config Config
	waiter *waiter.Waiter
	log    logging.LeveledLogger

	hostname string
	deadline time.Time

	engine           engine.Engine
	role             engine.Role
	hsStatus         engine.HandshakeStatus
	lastStatus       engine.Status
	initialHandshake bool
	bufs             *buffer.Set

	verifyResult    VerifyResult
	lastVerify      VerifyResult
	verifyConsulted bool

	closed bool
}

// NewSocket creates a socket over ch. Nothing is sent until Connect or
// Accept.
func NewSocket(ch channel.Channel, ctx *Context, config Config) *Socket {
	factory := config.LoggerFactory
	if factory == nil {
		factory = ctx.config.LoggerFactory
	}

	s := &Socket{
		id:           uuid.New(),
		ch:           ch,
		ctx:          ctx,
		config:       config,
		waiter:       waiter.New(waiter.Config{LoggerFactory: factory}),
		hostname:     config.Hostname,
		verifyResult: VerifyNotEvaluated,
		lastVerify:   VerifyNotEvaluated,
	}
	if factory != nil {
		s.log = factory.NewLogger("ssl")
	}
	return s
}

// Connect runs the client handshake, blocking until it finishes.
// Calling it again after the handshake finished is a no-op.
func (s *Socket) Connect(ctx context.Context) error {
	return s.handshake(ctx, engine.RoleClient, true)
}

// ConnectNonblock runs the client handshake as far as it can without
// blocking. It returns a would-block error when the caller must retry.
func (s *Socket) ConnectNonblock(ctx context.Context) error {
	return s.handshake(ctx, engine.RoleClient, false)
}

// Accept runs the server handshake, blocking until it finishes.
func (s *Socket) Accept(ctx context.Context) error {
	return s.handshake(ctx, engine.RoleServer, true)
}

// AcceptNonblock runs the server handshake as far as it can without
// blocking.
func (s *Socket) AcceptNonblock(ctx context.Context) error {
	return s.handshake(ctx, engine.RoleServer, false)
}

func (s *Socket) handshake(ctx context.Context, role engine.Role, blocking bool) error {
	if s.closed {
		return ErrClosedStream
	}
	if s.engine == nil {
		if err := s.setup(role); err != nil {
			return err
		}
	} else if s.role != role {
		return ErrWrongRole
	}
	if !s.initialHandshake {
		return nil
	}

	if blocking && s.ctx.config.Timeout > 0 {
		s.waiter.SetDeadline(time.Now().Add(s.ctx.config.Timeout))
		defer s.waiter.SetDeadline(s.deadline)
	}

	err := s.doHandshake(ctx, blocking)
	if err != nil && !IsWouldBlock(err) {
		if s.log != nil {
			s.log.Debugf("%s: %s handshake failed: %v", s.id, role, err)
		}
		if role == engine.RoleClient {
			s.forceClose()
		}
	}
	return err
}

// setup creates the engine and buffers for role and begins the handshake.
func (s *Socket) setup(role engine.Role) error {
	if !s.ctx.allows(role) {
		return ErrWrongRole
	}

	port := channel.PortOf(s.ch.RemoteAddr())
	eng, err := s.ctx.newEngine(role, s.hostname, port, s.recordVerify)
	if err != nil {
		return &Error{Op: role.String() + " setup", Kind: KindHandshake, Err: err}
	}

	eng.SetUseClientMode(role == engine.RoleClient)
	if role == engine.RoleServer {
		mode := s.ctx.config.VerifyMode
		if mode.Has(VerifyPeer) {
			eng.SetWantClientAuth(true)
		}
		if mode.Has(VerifyFailIfNoPeerCert) {
			eng.SetNeedClientAuth(true)
		}
	}

	info := eng.Session()
	s.bufs = buffer.NewSet(info.PacketBufferSize, info.ApplicationBufferSize)

	if err := eng.BeginHandshake(); err != nil {
		return &Error{Op: role.String() + " setup", Kind: KindHandshake, Err: err}
	}
	s.engine = eng
	s.role = role
	s.hsStatus = eng.HandshakeStatus()
	s.initialHandshake = true

	if s.log != nil {
		s.log.Tracef("%s: %s handshake begun with %s, status %s", s.id, role, s.ch.RemoteAddr(), s.hsStatus)
	}
	return nil
}

// recordVerify is the callback engines use to report verification.
func (s *Socket) recordVerify(r VerifyResult) {
	s.lastVerify = r
	s.verifyConsulted = true
}

// SetDeadline bounds every later blocking wait. A zero value disables it.
func (s *Socket) SetDeadline(t time.Time) {
	s.deadline = t
	s.waiter.SetDeadline(t)
}

// ID returns the socket's identifier used in log lines.
func (s *Socket) ID() uuid.UUID {
	return s.id
}

// Channel returns the raw channel.
func (s *Socket) Channel() channel.Channel {
	return s.ch
}

// Hostname returns the server name hint.
func (s *Socket) Hostname() string {
	return s.hostname
}

// SetHostname sets the server name hint. It fails once the session has
// started.
func (s *Socket) SetHostname(name string) error {
	if s.engine != nil {
		return ErrAlreadyStarted
	}
	s.hostname = name
	return nil
}

// Role returns the handshake role, or engine.RoleUnknown before the first
// Connect or Accept.
func (s *Socket) Role() engine.Role {
	return s.role
}

// HandshakeStatus returns the last status reported by the engine.
func (s *Socket) HandshakeStatus() engine.HandshakeStatus {
	return s.hsStatus
}

// State returns the driver phase.
func (s *Socket) State() State {
	switch {
	case s.closed:
		return StateClosed
	case s.engine == nil:
		return StateIdle
	case s.initialHandshake:
		return StateHandshaking
	default:
		return StateEstablished
	}
}

// VerifyResult returns the last peer verification result.
func (s *Socket) VerifyResult() VerifyResult {
	if s.engine == nil {
		if s.log != nil {
			s.log.Warnf("%s: verify result requested before the session started", s.id)
		}
		return VerifyNotEvaluated
	}
	return s.verifyResult
}

// Cipher returns the negotiated suite. ok is false before negotiation.
func (s *Socket) Cipher() (info CipherInfo, ok bool) {
	if s.engine == nil {
		return CipherInfo{}, false
	}
	session := s.engine.Session()
	if session.CipherSuite == "" {
		return CipherInfo{}, false
	}
	if info, ok := s.ctx.lookupCipher(session.CipherSuite); ok {
		return info, true
	}
	return CipherInfo{Name: session.CipherSuite, Version: session.Protocol}, true
}

// Version returns the negotiated protocol name, empty before negotiation.
func (s *Socket) Version() string {
	if s.engine == nil {
		return ""
	}
	return s.engine.Session().Protocol
}

// Certificate returns the local leaf certificate, or nil.
func (s *Socket) Certificate() *x509.Certificate {
	if s.engine == nil {
		return nil
	}
	if local := s.engine.Session().LocalCertificates; len(local) > 0 {
		return local[0]
	}
	return nil
}

// PeerCertificate returns the peer's leaf certificate, or nil.
func (s *Socket) PeerCertificate() *x509.Certificate {
	if chain := s.PeerCertificateChain(); len(chain) > 0 {
		return chain[0]
	}
	return nil
}

// PeerCertificateChain returns the chain the peer presented, leaf first.
func (s *Socket) PeerCertificateChain() []*x509.Certificate {
	if s.engine == nil {
		return nil
	}
	return s.engine.Session().PeerCertificates
}

// Pending returns the number of decrypted bytes ready to read.
func (s *Socket) Pending() int {
	if s.bufs == nil || s.bufs.AppIn == nil {
		return 0
	}
	return s.bufs.AppIn.Readable()
}
