// Package tlsengine implements engine.Engine on top of crypto/tls.
//
// crypto/tls drives a net.Conn, so each Engine runs a *tls.Conn over an
// in-memory conn on its own goroutine. Unwrap feeds one record into that
// conn and Wrap drains whatever the goroutine wrote. Before reading any
// state, every call waits until the goroutine is quiescent: blocked on
// input, parked in peer verification, or exited. Results therefore depend
// only on the records exchanged, never on scheduling.
//
// Peer verification is exposed as a delegated task: the goroutine parks in
// tls.Config.VerifyConnection until the caller runs the task.
package tlsengine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/ossl/pkg/buffer"
	"github.com/backkem/ossl/pkg/engine"
	"github.com/pion/logging"
)

// maxOverhead bounds the ciphertext added to one Write of plaintext,
// allowing for a record split by CBC suites on old protocol versions.
const maxOverhead = 2*recordHeaderLen + maxCiphertextBonus

type verifyTask struct {
	chain  []*x509.Certificate
	handed bool
	done   bool
	err    error
}

// Engine is a crypto/tls backed engine.Engine.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	config *tls.Config
	verify engine.VerifyFunc
	local  []*x509.Certificate
	conn   *tls.Conn
	log    logging.LeveledLogger

	client   bool
	wantAuth bool
	needAuth bool
	begun    bool

	// Transport side of memConn.
	in         []byte
	out        []byte
	inEOF      bool
	connClosed bool
	blocked    bool
	exited     bool

	task *verifyTask

	hsDone      bool
	hsErr       error
	readErr     error
	closeNotify bool
	state       tls.ConnectionState
	plain       []byte
	reported    bool

	outboundClosed bool
	inboundClosed  bool
}

var _ engine.Engine = (*Engine)(nil)

func newEngine(config *tls.Config, params engine.Params, local []*x509.Certificate, log logging.LeveledLogger) *Engine {
	e := &Engine{
		config: config,
		verify: params.Verify,
		local:  local,
		client: params.Role == engine.RoleClient,
		log:    log,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// SetUseClientMode implements engine.Engine.
func (e *Engine) SetUseClientMode(client bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client = client
}

// SetWantClientAuth implements engine.Engine.
func (e *Engine) SetWantClientAuth(want bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wantAuth = want
}

// SetNeedClientAuth implements engine.Engine.
func (e *Engine) SetNeedClientAuth(need bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.needAuth = need
}

// BeginHandshake starts the TLS goroutine. Calling it again is a no-op.
func (e *Engine) BeginHandshake() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.begun {
		return nil
	}
	e.begun = true

	config := e.config.Clone()
	// Chain checks run in the delegated verify task.
	config.InsecureSkipVerify = true
	config.VerifyConnection = e.verifyConnection

	conn := &memConn{e: e}
	if e.client {
		e.conn = tls.Client(conn, config)
	} else {
		// A missing client certificate is judged by the verify task, so
		// the verify result is recorded before the handshake fails.
		if e.needAuth || e.wantAuth {
			config.ClientAuth = tls.RequestClientCert
		} else {
			config.ClientAuth = tls.NoClientCert
		}
		e.conn = tls.Server(conn, config)
	}

	go e.run()
	return nil
}

func (e *Engine) run() {
	err := e.conn.HandshakeContext(context.Background())
	var state tls.ConnectionState
	if err == nil {
		state = e.conn.ConnectionState()
	}

	e.mu.Lock()
	if err != nil {
		e.hsErr = err
		e.exited = true
		e.cond.Broadcast()
		e.mu.Unlock()
		if e.log != nil {
			e.log.Debugf("handshake failed: %v", err)
		}
		return
	}
	e.hsDone = true
	e.state = state
	e.cond.Broadcast()
	e.mu.Unlock()

	if e.log != nil {
		e.log.Tracef("handshake complete: %s %s", ProtocolName(state.Version), suiteName(state.CipherSuite))
	}

	buf := make([]byte, maxPlaintext)
	for {
		n, err := e.conn.Read(buf)

		e.mu.Lock()
		e.plain = append(e.plain, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) && !e.inEOF {
				e.closeNotify = true
			} else {
				e.readErr = err
			}
			e.exited = true
			e.cond.Broadcast()
			e.mu.Unlock()
			return
		}
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

// verifyConnection runs on the TLS goroutine. It posts a task and parks
// until the task has run or the engine is torn down.
func (e *Engine) verifyConnection(state tls.ConnectionState) error {
	if e.verify == nil {
		if !e.client && e.needAuth && len(state.PeerCertificates) == 0 {
			return ErrNoClientCertificate
		}
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := &verifyTask{chain: state.PeerCertificates}
	e.task = t
	e.cond.Broadcast()
	for !t.done && !e.connClosed && !e.inboundClosed {
		e.cond.Wait()
	}
	e.task = nil
	if !t.done {
		return io.ErrClosedPipe
	}
	return t.err
}

// settle waits for the TLS goroutine to become quiescent. Callers hold mu.
func (e *Engine) settle() {
	for e.begun && !e.exited && !e.blocked && (e.task == nil || e.task.done) {
		e.cond.Wait()
	}
}

// failure returns the error that ends the session, if any. Callers hold mu.
func (e *Engine) failure() error {
	if e.hsErr != nil {
		return fmt.Errorf("%w: %w", engine.ErrHandshakeFailed, e.hsErr)
	}
	if e.readErr != nil && !e.inboundClosed && !e.connClosed {
		return fmt.Errorf("%w: %w", engine.ErrRecord, e.readErr)
	}
	return nil
}

// status computes the handshake status. FINISHED is returned once, and
// only when report is set. Callers hold mu.
func (e *Engine) status(report bool) engine.HandshakeStatus {
	switch {
	case !e.begun:
		return engine.NotHandshaking
	case e.task != nil && !e.task.done:
		return engine.NeedTask
	case len(e.out) > 0:
		return engine.NeedWrap
	case e.hsErr != nil:
		// Wrap surfaces the error.
		return engine.NeedWrap
	case !e.hsDone:
		if e.exited {
			return engine.NotHandshaking
		}
		return engine.NeedUnwrap
	case !e.reported:
		if report {
			e.reported = true
		}
		return engine.Finished
	default:
		return engine.NotHandshaking
	}
}

// HandshakeStatus implements engine.Engine.
func (e *Engine) HandshakeStatus() engine.HandshakeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settle()
	return e.status(true)
}

// DelegatedTasks returns the pending verification task, if any.
func (e *Engine) DelegatedTasks() []engine.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settle()

	t := e.task
	if t == nil || t.handed || t.done {
		return nil
	}
	t.handed = true
	return []engine.Task{func() {
		err := e.verify(t.chain)

		e.mu.Lock()
		t.err = err
		t.done = true
		e.cond.Broadcast()
		e.mu.Unlock()
	}}
}

// drain moves pending ciphertext into dst. Callers hold mu.
func (e *Engine) drain(dst *buffer.Buffer) int {
	n := dst.Write(e.out)
	e.out = e.out[n:]
	if len(e.out) == 0 {
		e.out = nil
	}
	return n
}

// Wrap emits pending handshake or alert records, then protects
// application data from src once the handshake is complete.
func (e *Engine) Wrap(src, dst *buffer.Buffer) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.begun {
		return engine.Result{}, engine.ErrNotBegun
	}
	e.settle()

	var res engine.Result
	if len(e.out) > 0 {
		res.BytesProduced = e.drain(dst)
		if res.BytesProduced == 0 {
			res.Status = engine.StatusBufferOverflow
			res.HandshakeStatus = e.status(false)
			return res, nil
		}
		if len(e.out) > 0 || e.outboundClosed {
			res.Status = engine.StatusOK
			if e.outboundClosed && len(e.out) == 0 {
				res.Status = engine.StatusClosed
			}
			res.HandshakeStatus = e.status(true)
			return res, nil
		}
	}

	if e.outboundClosed {
		res.Status = engine.StatusClosed
		res.HandshakeStatus = e.status(true)
		return res, nil
	}
	if res.BytesProduced == 0 {
		if err := e.failure(); err != nil {
			return res, err
		}
	}
	if !e.hsDone || src == nil || !src.HasReadable() {
		res.Status = engine.StatusOK
		res.HandshakeStatus = e.status(true)
		return res, nil
	}

	room := dst.Writable() - maxOverhead
	if room <= 0 {
		res.Status = engine.StatusBufferOverflow
		if res.BytesProduced > 0 {
			res.Status = engine.StatusOK
		}
		res.HandshakeStatus = e.status(true)
		return res, nil
	}
	chunk := min(src.Readable(), maxPlaintext, room)

	// tls.Conn.Write re-enters memConn, which takes mu.
	e.mu.Unlock()
	n, err := e.conn.Write(src.Bytes()[:chunk])
	e.mu.Lock()

	src.Advance(n)
	res.BytesConsumed = n
	res.BytesProduced += e.drain(dst)
	if err != nil {
		return res, fmt.Errorf("%w: %w", engine.ErrRecord, err)
	}
	res.Status = engine.StatusOK
	res.HandshakeStatus = e.status(true)
	return res, nil
}

// Unwrap hands out pending plaintext, or feeds the next complete record
// from src to the TLS goroutine.
func (e *Engine) Unwrap(src, dst *buffer.Buffer) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.begun {
		return engine.Result{}, engine.ErrNotBegun
	}
	e.settle()

	var res engine.Result
	if len(e.plain) > 0 {
		return e.deliver(res, dst), nil
	}
	if e.inboundDone() {
		res.Status = engine.StatusClosed
		res.HandshakeStatus = e.status(true)
		return res, nil
	}
	if err := e.failure(); err != nil {
		if len(e.out) > 0 {
			// Let the caller send our alert first.
			res.Status = engine.StatusOK
			res.HandshakeStatus = engine.NeedWrap
			return res, nil
		}
		return res, err
	}

	size, ok, err := recordSize(src.Bytes())
	if err != nil {
		return res, fmt.Errorf("%w: %w", engine.ErrRecord, err)
	}
	if !ok {
		res.Status = engine.StatusBufferUnderflow
		res.HandshakeStatus = e.status(false)
		return res, nil
	}

	e.in = append(e.in, src.Bytes()[:size]...)
	src.Advance(size)
	res.BytesConsumed = size
	e.blocked = false
	e.cond.Broadcast()
	e.settle()

	if len(e.plain) > 0 {
		return e.deliver(res, dst), nil
	}
	if err := e.failure(); err != nil && len(e.out) == 0 {
		return res, err
	}
	res.Status = engine.StatusOK
	if e.closeNotify {
		res.Status = engine.StatusClosed
	}
	res.HandshakeStatus = e.status(true)
	return res, nil
}

// deliver copies pending plaintext into dst. Callers hold mu.
func (e *Engine) deliver(res engine.Result, dst *buffer.Buffer) engine.Result {
	n := dst.Write(e.plain)
	e.plain = e.plain[n:]
	if len(e.plain) == 0 {
		e.plain = nil
	}
	res.BytesProduced = n
	res.Status = engine.StatusOK
	if n == 0 {
		res.Status = engine.StatusBufferOverflow
	}
	res.HandshakeStatus = e.status(true)
	return res
}

func (e *Engine) inboundDone() bool {
	return len(e.plain) == 0 && (e.inboundClosed || e.closeNotify)
}

// CloseInbound ends the inbound direction. It returns engine.ErrTruncated
// when no close_notify was received.
func (e *Engine) CloseInbound() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inboundClosed {
		return nil
	}
	e.inboundClosed = true
	e.inEOF = true
	e.plain = nil
	e.blocked = false
	e.cond.Broadcast()
	e.settle()

	if !e.closeNotify && e.begun {
		return engine.ErrTruncated
	}
	return nil
}

// CloseOutbound queues close_notify once the handshake is complete, or
// aborts a handshake in progress.
func (e *Engine) CloseOutbound() {
	e.mu.Lock()
	if e.outboundClosed {
		e.mu.Unlock()
		return
	}
	e.outboundClosed = true
	e.settle()
	done := e.hsDone
	if !done {
		// Abort: unsent handshake records are dropped.
		e.out = nil
		e.connClosed = true
		e.blocked = false
		e.cond.Broadcast()
	}
	e.mu.Unlock()

	if done {
		// Appends the alert to out through memConn.
		if err := e.conn.CloseWrite(); err != nil && e.log != nil {
			e.log.Debugf("close_notify: %v", err)
		}
	}

	e.mu.Lock()
	e.settle()
	e.mu.Unlock()
}

// IsInboundDone implements engine.Engine.
func (e *Engine) IsInboundDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inboundDone()
}

// IsOutboundDone implements engine.Engine.
func (e *Engine) IsOutboundDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outboundClosed && len(e.out) == 0
}

// Session implements engine.Engine.
func (e *Engine) Session() engine.SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := engine.SessionInfo{
		PacketBufferSize:      PacketBufferSize,
		ApplicationBufferSize: ApplicationBufferSize,
		LocalCertificates:     e.local,
	}
	if e.hsDone {
		info.CipherSuite = suiteName(e.state.CipherSuite)
		info.Protocol = ProtocolName(e.state.Version)
		info.PeerCertificates = e.state.PeerCertificates
	}
	return info
}

// ConnectionState returns the crypto/tls state once the handshake is
// complete.
func (e *Engine) ConnectionState() (tls.ConnectionState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.hsDone
}
