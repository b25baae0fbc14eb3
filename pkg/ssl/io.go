package ssl

import (
	"context"
	"errors"
	"io"

	"github.com/backkem/ossl/pkg/buffer"
	"github.com/backkem/ossl/pkg/channel"
	"github.com/backkem/ossl/pkg/engine"
)

// eof is the readAndUnwrap result for end-of-stream.
const eof = -1

// readAndUnwrap reads what the channel has into NetIn and unwraps it into
// AppIn. It returns the number of plaintext bytes available, or eof.
func (s *Socket) readAndUnwrap(ctx context.Context, blocking bool) (int, error) {
	in := s.bufs.NetIn
	in.Compact()
	if in.Writable() == 0 {
		s.grow(in)
	}

	n, err := s.ch.Read(in.Space())
	closed := false
	switch {
	case errors.Is(err, io.EOF):
		closed = true
	case err != nil:
		return 0, &Error{Op: "read", Kind: KindIO, Err: err}
	default:
		in.Commit(n)
	}

	if closed && (!in.HasReadable() || s.lastStatus == engine.StatusBufferUnderflow) {
		s.closeInbound()
		return eof, nil
	}

	s.bufs.AppIn.Compact()
	produced := s.bufs.AppIn.Readable()

	var res engine.Result
	for {
		res, err = s.unwrap()
		if err != nil {
			return 0, s.engineError("read", err)
		}
		if res.Status != engine.StatusOK || res.HandshakeStatus != engine.NeedUnwrap || res.BytesProduced != 0 {
			break
		}
	}
	if res.HandshakeStatus == engine.Finished {
		s.finishInitialHandshake()
	}
	if s.bufs.AppIn.Readable() == produced && res.Status == engine.StatusOK && in.HasReadable() {
		res, err = s.unwrap()
		if err != nil {
			return 0, s.engineError("read", err)
		}
	}
	s.lastStatus = res.Status
	s.hsStatus = res.HandshakeStatus

	if closed && !in.HasReadable() {
		s.closeInbound()
	}
	if res.Status == engine.StatusClosed {
		s.doShutdown(ctx)
		return eof, nil
	}

	if !s.initialHandshake {
		switch s.hsStatus {
		case engine.NeedTask, engine.NeedWrap, engine.Finished:
			if err := s.doHandshake(ctx, blocking); err != nil {
				return 0, err
			}
		}
	}
	return s.bufs.AppIn.Readable(), nil
}

// closeInbound tells the engine no more ciphertext will arrive. A
// truncation error is expected when the peer skipped close_notify.
func (s *Socket) closeInbound() {
	if err := s.engine.CloseInbound(); err != nil && s.log != nil {
		s.log.Debugf("%s: close inbound: %v", s.id, err)
	}
}

// read moves decrypted bytes into p. It returns 0 when nothing is
// available yet and eof at end-of-stream.
func (s *Socket) read(ctx context.Context, p []byte, blocking bool) (int, error) {
	if s.initialHandshake {
		return 0, nil
	}
	if s.engine.IsInboundDone() && !s.bufs.AppIn.HasReadable() {
		return eof, nil
	}
	if !s.bufs.AppIn.HasReadable() {
		n, err := s.readAndUnwrap(ctx, blocking)
		if err != nil || n <= 0 {
			return n, err
		}
	}
	return s.bufs.AppIn.Read(p), nil
}

// checkRead validates the socket for a read.
func (s *Socket) checkRead() error {
	switch {
	case s.closed:
		return ErrClosedStream
	case s.engine == nil:
		return ErrNotStarted
	case s.initialHandshake:
		return ErrReadDuringHandshake
	}
	return nil
}

// sysread reads at least one byte into p, or reports end-of-stream.
func (s *Socket) sysread(ctx context.Context, p []byte, blocking bool) (int, error) {
	if err := s.checkRead(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Only wait when nothing is buffered on either side of the engine.
	if !s.bufs.AppIn.HasReadable() && !s.bufs.NetIn.HasReadable() {
		if _, err := s.waiter.Wait(ctx, s.ch, channel.Readable, blocking); err != nil {
			return 0, err
		}
	}

	for {
		n, err := s.read(ctx, p, blocking)
		switch {
		case err != nil:
			return 0, err
		case n == eof:
			return 0, io.EOF
		case n > 0:
			return n, nil
		}
		if s.closed {
			return 0, io.EOF
		}
		// Only part of a record arrived; wait for the rest.
		if s.lastStatus == engine.StatusBufferUnderflow {
			if _, err := s.waiter.Wait(ctx, s.ch, channel.Readable, blocking); err != nil {
				return 0, err
			}
		}
	}
}

// Read implements io.Reader. It blocks until at least one byte is
// available and returns io.EOF once the peer closed the session.
func (s *Socket) Read(p []byte) (int, error) {
	return s.sysread(context.Background(), p, true)
}

// ReadNonblock reads like Read but returns ErrWouldBlockRead instead of
// suspending.
func (s *Socket) ReadNonblock(p []byte) (int, error) {
	return s.sysread(context.Background(), p, false)
}

// SysRead reads up to n bytes, blocking until at least one is available.
func (s *Socket) SysRead(ctx context.Context, n int) ([]byte, error) {
	return s.sysreadAlloc(ctx, n, true)
}

// SysReadNonblock reads up to n bytes without blocking.
func (s *Socket) SysReadNonblock(n int) ([]byte, error) {
	return s.sysreadAlloc(context.Background(), n, false)
}

func (s *Socket) sysreadAlloc(ctx context.Context, n int, blocking bool) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	got, err := s.sysread(ctx, buf, blocking)
	if err != nil {
		return nil, err
	}
	return buf[:got], nil
}

// ReadFull blocks until exactly n bytes were read. At end-of-stream it
// returns the bytes read so far with io.ErrUnexpectedEOF, or io.EOF if
// there were none.
func (s *Socket) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, err := io.ReadFull(s, buf)
	return buf[:got], err
}

// checkWrite validates the socket for a write.
func (s *Socket) checkWrite() error {
	switch {
	case s.closed || !s.ch.IsOpen():
		return ErrClosedStream
	case s.engine == nil:
		return ErrNotStarted
	case s.initialHandshake:
		return ErrWriteDuringHandshake
	}
	return nil
}

// write wraps one record's worth of p and flushes it. It returns the
// number of plaintext bytes consumed.
func (s *Socket) write(ctx context.Context, p []byte, blocking bool) (int, error) {
	if err := s.checkWrite(); err != nil {
		return 0, err
	}
	if _, err := s.waiter.Wait(ctx, s.ch, channel.Writable, blocking); err != nil {
		return 0, err
	}

	if s.bufs.NetOut.HasReadable() {
		if err := s.flush(ctx, blocking); err != nil {
			return 0, err
		}
	}
	s.bufs.NetOut.Clear()

	src := buffer.Wrap(p)
	res, err := s.wrap(src)
	if err != nil {
		return 0, s.engineError("write", err)
	}
	if res.Status == engine.StatusClosed {
		return 0, ErrClosedStream
	}

	if err := s.flush(ctx, blocking); err != nil && !IsWouldBlock(err) {
		return 0, err
	}
	// Records left in NetOut by a non-blocking flush go out with the next
	// operation.
	return res.BytesConsumed, nil
}

// SysWrite wraps and sends one record's worth of p, blocking until the
// channel accepts it. It returns the plaintext bytes consumed, which may
// be fewer than len(p).
func (s *Socket) SysWrite(ctx context.Context, p []byte) (int, error) {
	return s.write(ctx, p, true)
}

// SysWriteNonblock is SysWrite returning ErrWouldBlockWrite instead of
// suspending.
func (s *Socket) SysWriteNonblock(p []byte) (int, error) {
	return s.write(context.Background(), p, false)
}

// Write implements io.Writer. It wraps and sends all of p.
func (s *Socket) Write(p []byte) (int, error) {
	return s.WriteContext(context.Background(), p)
}

// WriteContext writes all of p, stopping early when ctx is done.
func (s *Socket) WriteContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, s.checkWrite()
	}
	total := 0
	for total < len(p) {
		n, err := s.write(ctx, p[total:], true)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Flush sends records a non-blocking write left behind, blocking until
// the channel took them all.
func (s *Socket) Flush(ctx context.Context) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	return s.flush(ctx, true)
}

// FlushNonblock is Flush returning ErrWouldBlockWrite instead of
// suspending.
func (s *Socket) FlushNonblock() error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	return s.flush(context.Background(), false)
}

// Buffered returns the number of ciphertext bytes waiting to be flushed.
func (s *Socket) Buffered() int {
	if s.bufs == nil || s.bufs.NetOut == nil {
		return 0
	}
	return s.bufs.NetOut.Readable()
}

// flush writes NetOut to the channel. Blocking mode waits for space until
// NetOut is empty; non-blocking mode returns ErrWouldBlockWrite when the
// channel is full.
func (s *Socket) flush(ctx context.Context, blocking bool) error {
	out := s.bufs.NetOut
	for out.HasReadable() {
		n, err := s.ch.Write(out.Bytes())
		if err != nil {
			out.Clear()
			return &Error{Op: "write", Kind: KindIO, Err: err}
		}
		out.Advance(n)
		if n > 0 {
			continue
		}
		if _, err := s.waiter.Wait(ctx, s.ch, channel.Writable, blocking); err != nil {
			return err
		}
	}
	return nil
}
