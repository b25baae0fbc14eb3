package ssl

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/backkem/ossl/pkg/engine"
	"go.uber.org/multierr"
)

// closeTimeout bounds how long a server's Close waits for the peer to
// drain queued records when ContextConfig.Timeout is unset.
const closeTimeout = time.Second

// Close shuts the session down and releases the engine and buffers.
//
// Clients always send close_notify synchronously. A server with records
// still queued first tries to flush them, bounded by ContextConfig.Timeout
// or closeTimeout, and sends close_notify only once they are out. With
// Config.SyncClose the channel is closed too. Closing twice is a no-op.
// Closing before Connect or Accept returns ErrNotStarted wrapped with
// io.EOF.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.engine == nil {
		err = fmt.Errorf("%w: %w", ErrNotStarted, io.EOF)
	} else {
		if s.role == engine.RoleServer && s.bufs.NetOut.HasReadable() {
			s.drainAndShutdown()
		} else {
			s.forceClose()
		}
		s.closeInbound()
		s.bufs.Release()
		if s.log != nil {
			s.log.Tracef("%s: closed", s.id)
		}
	}

	if s.config.SyncClose {
		err = multierr.Append(err, s.ch.Close())
	}
	return err
}

// forceClose shuts the outbound direction down right away. Clients call
// it when the handshake fails.
func (s *Socket) forceClose() {
	s.engine.CloseOutbound()
	s.doShutdown(context.Background())
}

// drainAndShutdown gives the peer a bounded window to take the records
// still in NetOut before close_notify follows them.
func (s *Socket) drainAndShutdown() {
	timeout := s.ctx.config.Timeout
	if timeout <= 0 {
		timeout = closeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.log != nil {
		s.log.Tracef("%s: draining %d queued bytes before close", s.id, s.bufs.NetOut.Readable())
	}
	s.engine.CloseOutbound()
	s.doShutdown(ctx)
}

// doShutdown sends close_notify. Failures are logged and swallowed since
// the peer may already be gone.
func (s *Socket) doShutdown(ctx context.Context) {
	if s.engine.IsOutboundDone() {
		return
	}
	s.engine.CloseOutbound()

	if err := s.flush(ctx, true); err != nil {
		if s.log != nil {
			s.log.Debugf("%s: shutdown flush: %v", s.id, err)
		}
		return
	}
	s.bufs.NetOut.Clear()
	if _, err := s.wrap(s.bufs.Empty); err != nil {
		if s.log != nil {
			s.log.Debugf("%s: shutdown wrap: %v", s.id, err)
		}
		return
	}
	if err := s.flush(ctx, true); err != nil && s.log != nil {
		s.log.Debugf("%s: shutdown flush: %v", s.id, err)
	}
}
