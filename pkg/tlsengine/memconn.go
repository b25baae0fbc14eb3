package tlsengine

import (
	"io"
	"net"
	"time"
)

type memAddr struct{}

func (memAddr) Network() string { return "mem" }
func (memAddr) String() string  { return "tlsengine" }

// memConn is the net.Conn the TLS goroutine talks to. Reads block on the
// engine's inbound queue; writes append to its outbound queue. All state
// lives in the Engine under its mutex.
type memConn struct {
	e *Engine
}

func (c *memConn) Read(p []byte) (int, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.in) == 0 && !e.inEOF && !e.connClosed {
		e.blocked = true
		e.cond.Broadcast()
		e.cond.Wait()
	}
	e.blocked = false

	if len(e.in) == 0 {
		if e.connClosed {
			return 0, net.ErrClosed
		}
		return 0, io.EOF
	}
	n := copy(p, e.in)
	e.in = e.in[n:]
	return n, nil
}

func (c *memConn) Write(p []byte) (int, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connClosed {
		return 0, net.ErrClosed
	}
	e.out = append(e.out, p...)
	e.cond.Broadcast()
	return len(p), nil
}

func (c *memConn) Close() error {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connClosed = true
	e.cond.Broadcast()
	return nil
}

func (c *memConn) LocalAddr() net.Addr                { return memAddr{} }
func (c *memConn) RemoteAddr() net.Addr               { return memAddr{} }
func (c *memConn) SetDeadline(t time.Time) error      { return nil }
func (c *memConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *memConn) SetWriteDeadline(t time.Time) error { return nil }
