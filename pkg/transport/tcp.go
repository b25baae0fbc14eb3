package transport

import (
	"context"
	"net"
	"sync"

	"github.com/backkem/ossl/pkg/channel"
	"github.com/pion/logging"
)

// ConnHandler is called on its own goroutine for every accepted
// connection. The channel is closed when the handler returns, unless the
// handler closed it already.
type ConnHandler func(ch channel.Channel, peer PeerAddress)

// Listener accepts stream connections and hands each one to a ConnHandler
// as a channel.Channel.
type Listener struct {
	listener net.Listener
	handler  ConnHandler
	chConfig channel.Config
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	// Connection tracking
	connsMu sync.Mutex
	conns   map[*channel.Stream]struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Listener is an optional pre-existing Listener to use, for example
	// one returned by Pipe.Listener. If nil, a TCP listener is created on
	// ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":4433").
	// Ignored if Listener is provided.
	ListenAddr string

	// Handler is called for each accepted connection.
	// Required.
	Handler ConnHandler

	// Channel configures the channel wrapping each connection.
	Channel channel.Config

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewListener creates a listener with the given configuration.
func NewListener(config ListenerConfig) (*Listener, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}

	l := &Listener{
		listener: config.Listener,
		handler:  config.Handler,
		chConfig: config.Channel,
		closeCh:  make(chan struct{}),
		conns:    make(map[*channel.Stream]struct{}),
	}
	if l.chConfig.LoggerFactory == nil {
		l.chConfig.LoggerFactory = config.LoggerFactory
	}

	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("transport")
	}

	if l.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		l.listener = listener
	}

	return l, nil
}

// Start begins accepting connections.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Infof("listening on %s", l.listener.Addr())
	}

	l.wg.Add(1)
	go l.acceptLoop()

	return nil
}

// Stop closes the listener and every open connection, then waits for the
// handlers to return.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	if l.log != nil {
		l.log.Info("stopping listener")
	}

	close(l.closeCh)
	err := l.listener.Close()

	l.connsMu.Lock()
	for ch := range l.conns {
		ch.Close()
	}
	l.connsMu.Unlock()

	l.wg.Wait()
	return err
}

// Addr returns the local address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Connections returns the number of connections whose handler is running.
func (l *Listener) Connections() int {
	l.connsMu.Lock()
	defer l.connsMu.Unlock()
	return len(l.conns)
}

// acceptLoop accepts incoming connections.
func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.closeCh:
				return
			default:
			}
			if l.log != nil {
				l.log.Warnf("accept: %v", err)
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

// handleConn runs the handler for a single connection.
func (l *Listener) handleConn(conn net.Conn) {
	defer l.wg.Done()

	ch := channel.FromConn(conn, l.chConfig)
	peer := PeerAddressOf(conn.RemoteAddr())

	l.connsMu.Lock()
	l.conns[ch] = struct{}{}
	l.connsMu.Unlock()

	defer func() {
		if ch.IsOpen() {
			ch.Close()
		}
		l.connsMu.Lock()
		delete(l.conns, ch)
		l.connsMu.Unlock()
	}()

	if l.log != nil {
		l.log.Debugf("accepted %s", peer)
	}
	l.handler(ch, peer)
}

// Dial connects to addr over TCP and wraps the connection in a channel.
func Dial(ctx context.Context, addr string, config channel.Config) (*channel.Stream, error) {
	if addr == "" {
		return nil, ErrInvalidAddress
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return channel.FromConn(conn, config), nil
}
