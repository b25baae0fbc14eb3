package channel

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"go.uber.org/multierr"
)

// Stream is the Channel implementation shared by in-memory pairs and
// wrapped net.Conns.
type Stream struct {
	in  *queue
	out *queue
	n   *notifier

	local  net.Addr
	remote net.Addr

	// conn is non-nil for FromConn streams.
	conn     net.Conn
	linger   time.Duration
	writerWG sync.WaitGroup
	readerWG sync.WaitGroup

	closed atomic.Bool
	log    logging.LeveledLogger
}

var _ Channel = (*Stream)(nil)

// NewPair creates two connected in-memory endpoints. Bytes written to one
// are read from the other, with Config.Capacity bytes buffered per
// direction.
func NewPair(config Config) (*Stream, *Stream) {
	config = config.withDefaults()

	n0, n1 := newNotifier(), newNotifier()
	q01 := newQueue(config.Capacity, n0, n1)
	q10 := newQueue(config.Capacity, n0, n1)

	s0 := &Stream{
		in:     q10,
		out:    q01,
		n:      n0,
		local:  PairAddr{ID: 0},
		remote: PairAddr{ID: 1},
	}
	s1 := &Stream{
		in:     q01,
		out:    q10,
		n:      n1,
		local:  PairAddr{ID: 1},
		remote: PairAddr{ID: 0},
	}
	if config.LoggerFactory != nil {
		s0.log = config.LoggerFactory.NewLogger("channel")
		s1.log = s0.log
	}
	return s0, s1
}

// FromConn adapts a net.Conn to a Channel. A reader goroutine fills the
// inbound queue from conn and a writer goroutine drains the outbound queue
// to conn. Close closes conn.
func FromConn(conn net.Conn, config Config) *Stream {
	config = config.withDefaults()

	n := newNotifier()
	s := &Stream{
		in:     newQueue(config.Capacity, n),
		out:    newQueue(config.Capacity, n),
		n:      n,
		local:  conn.LocalAddr(),
		remote: conn.RemoteAddr(),
		conn:   conn,
		linger: config.Linger,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("channel")
	}

	s.readerWG.Add(1)
	go s.readPump(config.ReadChunk)
	s.writerWG.Add(1)
	go s.writePump(config.ReadChunk)

	return s
}

// readPump copies conn into the inbound queue until conn fails.
func (s *Stream) readPump(chunk int) {
	defer s.readerWG.Done()

	buf := make([]byte, chunk)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if werr := s.in.writeAll(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if s.log != nil && !s.closed.Load() {
				s.log.Tracef("read pump %s stopped: %v", s.remote, err)
			}
			s.in.closeWrite(err)
			return
		}
	}
}

// writePump drains the outbound queue into conn.
func (s *Stream) writePump(chunk int) {
	defer s.writerWG.Done()

	buf := make([]byte, chunk)
	for {
		n, err := s.out.readWait(buf)
		if err != nil {
			return
		}
		if _, err := s.conn.Write(buf[:n]); err != nil {
			if s.log != nil {
				s.log.Debugf("write pump %s stopped: %v", s.remote, err)
			}
			s.out.closeRead(err)
			return
		}
	}
}

// Read implements Channel.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.in.read(p)
}

// Write implements Channel.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.out.write(p)
}

// CloseWrite implements Channel.
func (s *Stream) CloseWrite() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.out.closeWrite(nil)
	return nil
}

// Close implements Channel. For wrapped conns, queued outbound bytes get up
// to Config.Linger to drain before conn is closed.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	s.out.closeWrite(nil)
	if s.conn == nil {
		s.in.closeRead(ErrPeerClosed)
		return nil
	}

	var flushErr error
	drained := make(chan struct{})
	go func() {
		s.writerWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.linger):
		if s.log != nil {
			s.log.Debugf("close %s: %d bytes not flushed", s.remote, s.out.pending())
		}
		flushErr = ErrUnflushed
	}

	s.in.closeRead(ErrClosed)
	s.out.closeRead(ErrClosed)
	closeErr := s.conn.Close()
	s.readerWG.Wait()
	s.writerWG.Wait()
	return multierr.Append(flushErr, closeErr)
}

// Ready implements Channel. A closed channel reports every interest as
// ready so waiters wake up and observe the failure.
func (s *Stream) Ready(interest Interest) Interest {
	if s.closed.Load() {
		return interest
	}
	var ready Interest
	if interest.Has(Readable) && s.in.readable() {
		ready |= Readable
	}
	if interest.Has(Writable) && s.out.writable() {
		ready |= Writable
	}
	return ready
}

// Register implements Channel.
func (s *Stream) Register(interest Interest) *Registration {
	r := s.n.register(interest)
	if s.Ready(interest) != 0 {
		r.signal()
	}
	return r
}

// Registrations returns the number of live registrations.
func (s *Stream) Registrations() int {
	return s.n.count()
}

// Buffered returns the number of inbound bytes not yet read.
func (s *Stream) Buffered() int {
	return s.in.pending()
}

// IsOpen implements Channel.
func (s *Stream) IsOpen() bool {
	return !s.closed.Load()
}

// LocalAddr implements Channel.
func (s *Stream) LocalAddr() net.Addr {
	return s.local
}

// RemoteAddr implements Channel.
func (s *Stream) RemoteAddr() net.Addr {
	return s.remote
}
