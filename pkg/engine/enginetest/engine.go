// Package enginetest provides a scripted engine.Engine for exercising the
// session driver without real cryptography.
//
// The stub handshake is one flight each way:
//
//	client                          server
//	  Wrap     --- hello --->         Unwrap
//	  (wait)                          NeedTask (verify) -> NeedWrap
//	  Unwrap   <-- hello ----         Wrap -> Finished
//	  NeedTask (verify) -> Finished
//
// Application records are XOR-masked with Config.Key. Close uses an alert
// record; a key-update record forces the receiver back into NeedWrap so
// post-handshake renegotiation paths can be driven.
package enginetest

import (
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/backkem/ossl/pkg/buffer"
	"github.com/backkem/ossl/pkg/engine"
)

// Default buffer hints.
const (
	DefaultApplicationBufferSize = 16384
	DefaultPacketBufferSize      = DefaultApplicationBufferSize + HeaderLen
)

// CipherSuite is the suite name reported by stub sessions.
const CipherSuite = "STUB_XOR_WITH_NULL_SHA"

var (
	helloClient = []byte("stub-client-hello")
	helloServer = []byte("stub-server-hello")
)

// Config configures stub engines.
type Config struct {
	// Key masks application data.
	Key byte

	// PacketBufferSize and ApplicationBufferSize are the reported hints.
	// Zero uses the defaults.
	PacketBufferSize      int
	ApplicationBufferSize int

	// FailHandshake, when set, is returned (wrapped in
	// engine.ErrHandshakeFailed) by the Unwrap that receives the peer hello.
	FailHandshake error

	// PeerCertificates is passed to the verify callback and reported by
	// Session.
	PeerCertificates []*x509.Certificate

	// LocalCertificates is reported by Session.
	LocalCertificates []*x509.Certificate
}

type hsState int

const (
	stateIdle hsState = iota
	stateSendHello
	stateAwaitHello
	stateTask
	stateDone
)

// Engine is the scripted engine. Counters are exported for assertions.
type Engine struct {
	config Config
	params engine.Params

	client   bool
	state    hsState
	reported bool
	pending  [][]byte

	outboundClosed bool
	inboundDone    bool
	closeReceived  bool

	// failure is set when the verify callback rejected the peer; the next
	// Wrap returns it once and later wraps send the fatal alert.
	failure         error
	failureReturned bool

	// WrapCalls, UnwrapCalls and TaskRuns count engine calls.
	WrapCalls   int
	UnwrapCalls int
	TaskRuns    int

	// WantClientAuth and NeedClientAuth record the server auth flags.
	WantClientAuth bool
	NeedClientAuth bool
}

var _ engine.Engine = (*Engine)(nil)

// NewEngine creates a stub engine.
func NewEngine(config Config, params engine.Params) *Engine {
	if config.PacketBufferSize == 0 {
		config.PacketBufferSize = DefaultPacketBufferSize
	}
	if config.ApplicationBufferSize == 0 {
		config.ApplicationBufferSize = DefaultApplicationBufferSize
	}
	return &Engine{
		config: config,
		params: params,
		client: params.Role == engine.RoleClient,
	}
}

// SetUseClientMode implements engine.Engine.
func (e *Engine) SetUseClientMode(client bool) { e.client = client }

// SetWantClientAuth implements engine.Engine.
func (e *Engine) SetWantClientAuth(want bool) { e.WantClientAuth = want }

// SetNeedClientAuth implements engine.Engine.
func (e *Engine) SetNeedClientAuth(need bool) { e.NeedClientAuth = need }

// IsClient reports the configured role.
func (e *Engine) IsClient() bool { return e.client }

// BeginHandshake implements engine.Engine.
func (e *Engine) BeginHandshake() error {
	if e.state != stateIdle {
		return nil
	}
	if e.client {
		e.pending = append(e.pending, appendRecord(nil, recordHandshake, helloClient))
		e.state = stateSendHello
	} else {
		e.state = stateAwaitHello
	}
	return nil
}

// HandshakeStatus implements engine.Engine.
func (e *Engine) HandshakeStatus() engine.HandshakeStatus {
	return e.status(true)
}

// status computes the next action. Finished is reported once; report
// marks it consumed.
func (e *Engine) status(report bool) engine.HandshakeStatus {
	if e.failure != nil && len(e.pending) > 0 {
		return engine.NeedWrap
	}
	switch {
	case e.state == stateTask:
		return engine.NeedTask
	case len(e.pending) > 0:
		return engine.NeedWrap
	case e.state == stateSendHello || e.state == stateAwaitHello:
		return engine.NeedUnwrap
	case e.state == stateDone && !e.reported:
		if report {
			e.reported = true
		}
		return engine.Finished
	default:
		return engine.NotHandshaking
	}
}

// Wrap implements engine.Engine.
func (e *Engine) Wrap(src, dst *buffer.Buffer) (engine.Result, error) {
	e.WrapCalls++

	if e.failure != nil && !e.failureReturned {
		e.failureReturned = true
		return engine.Result{}, fmt.Errorf("%w: %w", engine.ErrHandshakeFailed, e.failure)
	}

	if len(e.pending) > 0 {
		rec := e.pending[0]
		if dst.Writable() < len(rec) {
			return engine.Result{Status: engine.StatusBufferOverflow, HandshakeStatus: e.status(false)}, nil
		}
		dst.Write(rec)
		e.pending = e.pending[1:]
		if e.state == stateSendHello && e.client {
			e.state = stateAwaitHello
		}
		if !e.client && e.state == stateSendHello {
			e.state = stateDone
		}
		status := engine.StatusOK
		if e.outboundClosed {
			status = engine.StatusClosed
		}
		return engine.Result{Status: status, HandshakeStatus: e.status(true), BytesProduced: len(rec)}, nil
	}

	if e.outboundClosed {
		return engine.Result{Status: engine.StatusClosed, HandshakeStatus: e.status(true)}, nil
	}
	if e.state != stateDone || !src.HasReadable() {
		return engine.Result{Status: engine.StatusOK, HandshakeStatus: e.status(true)}, nil
	}

	n := src.Readable()
	if n > e.config.ApplicationBufferSize {
		n = e.config.ApplicationBufferSize
	}
	if room := dst.Writable() - HeaderLen; n > room {
		n = room
	}
	if n <= 0 {
		return engine.Result{Status: engine.StatusBufferOverflow, HandshakeStatus: e.status(true)}, nil
	}

	masked := make([]byte, n)
	xor(masked, src.Bytes()[:n], e.config.Key)
	src.Advance(n)
	rec := appendRecord(nil, recordData, masked)
	dst.Write(rec)

	return engine.Result{
		Status:          engine.StatusOK,
		HandshakeStatus: e.status(true),
		BytesConsumed:   n,
		BytesProduced:   len(rec),
	}, nil
}

// Unwrap implements engine.Engine. It consumes at most one record.
func (e *Engine) Unwrap(src, dst *buffer.Buffer) (engine.Result, error) {
	e.UnwrapCalls++

	if e.inboundDone {
		return engine.Result{Status: engine.StatusClosed, HandshakeStatus: e.status(true)}, nil
	}

	typ, payload, size, err := parseRecord(src.Bytes())
	if err != nil {
		return engine.Result{Status: engine.StatusBufferUnderflow, HandshakeStatus: e.status(true)}, nil
	}

	switch typ {
	case recordHandshake:
		if e.state != stateAwaitHello {
			return engine.Result{}, fmt.Errorf("%w: unexpected hello in state %d", engine.ErrHandshakeFailed, e.state)
		}
		src.Advance(size)
		if e.config.FailHandshake != nil {
			return engine.Result{}, fmt.Errorf("%w: %w", engine.ErrHandshakeFailed, e.config.FailHandshake)
		}
		e.state = stateTask
		return engine.Result{Status: engine.StatusOK, HandshakeStatus: e.status(true), BytesConsumed: size}, nil

	case recordData:
		if e.state != stateDone {
			return engine.Result{}, fmt.Errorf("%w: data before handshake", engine.ErrRecord)
		}
		if dst.Writable() < len(payload) {
			return engine.Result{Status: engine.StatusBufferOverflow, HandshakeStatus: e.status(true)}, nil
		}
		xor(dst.Space(), payload, e.config.Key)
		dst.Commit(len(payload))
		src.Advance(size)
		return engine.Result{
			Status:          engine.StatusOK,
			HandshakeStatus: e.status(true),
			BytesConsumed:   size,
			BytesProduced:   len(payload),
		}, nil

	case recordKeyUpdate:
		src.Advance(size)
		if len(payload) == 1 && payload[0] == 0 {
			e.pending = append(e.pending, appendRecord(nil, recordKeyUpdate, []byte{1}))
			e.reported = false
		}
		return engine.Result{Status: engine.StatusOK, HandshakeStatus: e.status(true), BytesConsumed: size}, nil

	case recordAlert:
		src.Advance(size)
		e.inboundDone = true
		if len(payload) == 2 && payload[0] == 2 {
			return engine.Result{}, fmt.Errorf("%w: received fatal alert %d", engine.ErrHandshakeFailed, payload[1])
		}
		e.closeReceived = true
		return engine.Result{Status: engine.StatusClosed, HandshakeStatus: e.status(true), BytesConsumed: size}, nil

	default:
		return engine.Result{}, fmt.Errorf("%w: unknown record type %d", engine.ErrRecord, typ)
	}
}

// DelegatedTasks implements engine.Engine. The single task consults the
// verify callback with the configured peer chain.
func (e *Engine) DelegatedTasks() []engine.Task {
	if e.state != stateTask {
		return nil
	}
	return []engine.Task{func() {
		e.TaskRuns++
		if e.params.Verify != nil {
			if err := e.params.Verify(e.config.PeerCertificates); err != nil {
				e.failure = err
				e.state = stateDone
				e.reported = true
				e.outboundClosed = true
				e.pending = append(e.pending, appendRecord(nil, recordAlert, []byte{2, 42}))
				return
			}
		}
		if e.client {
			e.state = stateDone
			return
		}
		e.pending = append(e.pending, appendRecord(nil, recordHandshake, helloServer))
		e.state = stateSendHello
	}}
}

// RequestKeyUpdate queues a key-update request. The peer answers it from
// its read path, re-entering its handshake driver.
func (e *Engine) RequestKeyUpdate() {
	e.pending = append(e.pending, appendRecord(nil, recordKeyUpdate, []byte{0}))
}

// CloseInbound implements engine.Engine.
func (e *Engine) CloseInbound() error {
	e.inboundDone = true
	if !e.closeReceived {
		return engine.ErrTruncated
	}
	return nil
}

// CloseOutbound implements engine.Engine.
func (e *Engine) CloseOutbound() {
	if e.outboundClosed {
		return
	}
	e.outboundClosed = true
	e.pending = append(e.pending, appendRecord(nil, recordAlert, []byte{1, 0}))
}

// IsInboundDone implements engine.Engine.
func (e *Engine) IsInboundDone() bool { return e.inboundDone }

// IsOutboundDone implements engine.Engine.
func (e *Engine) IsOutboundDone() bool { return e.outboundClosed && len(e.pending) == 0 }

// Session implements engine.Engine.
func (e *Engine) Session() engine.SessionInfo {
	info := engine.SessionInfo{
		PacketBufferSize:      e.config.PacketBufferSize,
		ApplicationBufferSize: e.config.ApplicationBufferSize,
		PeerCertificates:      e.config.PeerCertificates,
		LocalCertificates:     e.config.LocalCertificates,
	}
	if e.state == stateDone {
		info.CipherSuite = CipherSuite
		info.Protocol = "STUBv1"
	}
	return info
}

// Params returns the parameters the engine was created with.
func (e *Engine) Params() engine.Params { return e.params }

// Provider creates stub engines and keeps every engine it made.
type Provider struct {
	Config Config

	mu      sync.Mutex
	engines []*Engine
}

var _ engine.Provider = (*Provider)(nil)

// NewProvider creates a stub provider.
func NewProvider(config Config) *Provider {
	return &Provider{Config: config}
}

// NewEngine implements engine.Provider.
func (p *Provider) NewEngine(params engine.Params) (engine.Engine, error) {
	e := NewEngine(p.Config, params)
	p.mu.Lock()
	p.engines = append(p.engines, e)
	p.mu.Unlock()
	return e, nil
}

// CipherSuites implements engine.Provider.
func (p *Provider) CipherSuites() []engine.CipherSuite {
	return []engine.CipherSuite{{
		Name:    CipherSuite,
		Version: "STUBv1",
		Bits:    8,
		AlgBits: 8,
		Tags:    []string{"XOR", "HIGH"},
	}}
}

// Engines returns the engines created so far.
func (p *Provider) Engines() []*Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Engine(nil), p.engines...)
}
