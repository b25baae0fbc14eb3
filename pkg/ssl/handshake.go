package ssl

import (
	"context"
	"errors"
	"fmt"

	"github.com/backkem/ossl/pkg/buffer"
	"github.com/backkem/ossl/pkg/channel"
	"github.com/backkem/ossl/pkg/engine"
)

// maxGrowRetries bounds buffer growth after repeated overflow results.
const maxGrowRetries = 4

// doHandshake runs the handshake state machine until the engine reports
// FINISHED or NOT_HANDSHAKING, or an error occurs.
func (s *Socket) doHandshake(ctx context.Context, blocking bool) error {
	if s.engine == nil {
		return ErrNotStarted
	}

	for {
		if _, err := s.waiter.Wait(ctx, s.ch, channel.ReadWrite, blocking); err != nil {
			return err
		}
		// A non-blocking flush may have left records behind.
		if s.bufs.NetOut.HasReadable() {
			if err := s.flush(ctx, blocking); err != nil {
				return err
			}
		}

		if s.log != nil {
			s.log.Tracef("%s: handshake step %s", s.id, s.hsStatus)
		}

		switch s.hsStatus {
		case engine.Finished:
			if s.initialHandshake {
				s.finishInitialHandshake()
			}
			return nil

		case engine.NotHandshaking:
			// The peer may have closed during an unwrap.
			return nil

		case engine.NeedTask:
			s.doTasks()

		case engine.NeedUnwrap:
			n, err := s.readAndUnwrap(ctx, blocking)
			if err != nil {
				return err
			}
			if n < 0 && s.hsStatus != engine.Finished {
				return &Error{Op: handshakeOp(s.role), Kind: KindHandshake, Err: errSocketClosed}
			}
			// An underflow does not make the channel readable; wait for
			// it explicitly rather than spin.
			if s.initialHandshake && s.lastStatus == engine.StatusBufferUnderflow {
				if _, err := s.waiter.Wait(ctx, s.ch, channel.Readable, blocking); err != nil {
					return err
				}
			}

		case engine.NeedWrap:
			if err := s.flush(ctx, blocking); err != nil {
				return err
			}
			s.bufs.NetOut.Clear()
			res, err := s.wrap(s.bufs.Empty)
			if err != nil {
				return s.engineError(handshakeOp(s.role), err)
			}
			s.hsStatus = res.HandshakeStatus
			if err := s.flush(ctx, blocking); err != nil {
				return err
			}

		default:
			panic(fmt.Sprintf("ssl: unknown handshake status %d", s.hsStatus))
		}
	}
}

func (s *Socket) finishInitialHandshake() {
	s.initialHandshake = false
	if s.log != nil {
		info := s.engine.Session()
		s.log.Debugf("%s: %s handshake finished: %s %s", s.id, s.role, info.Protocol, info.CipherSuite)
	}
}

// doTasks runs every delegated task on the calling goroutine, then
// refreshes the handshake status and picks up the verification result.
func (s *Socket) doTasks() {
	for {
		tasks := s.engine.DelegatedTasks()
		if len(tasks) == 0 {
			break
		}
		for _, task := range tasks {
			task()
		}
	}
	s.hsStatus = s.engine.HandshakeStatus()
	if s.verifyConsulted {
		s.verifyResult = s.lastVerify
		s.verifyConsulted = false
	}
}

// wrap calls Engine.Wrap into NetOut, growing it on overflow.
func (s *Socket) wrap(src *buffer.Buffer) (engine.Result, error) {
	for i := 0; ; i++ {
		res, err := s.engine.Wrap(src, s.bufs.NetOut)
		if err != nil {
			return res, err
		}
		s.lastStatus = res.Status
		if res.Status != engine.StatusBufferOverflow || i == maxGrowRetries {
			return res, nil
		}
		s.grow(s.bufs.NetOut)
	}
}

// unwrap calls Engine.Unwrap from NetIn into AppIn, growing AppIn on
// overflow.
func (s *Socket) unwrap() (engine.Result, error) {
	for i := 0; ; i++ {
		res, err := s.engine.Unwrap(s.bufs.NetIn, s.bufs.AppIn)
		if err != nil {
			return res, err
		}
		if res.Status != engine.StatusBufferOverflow || i == maxGrowRetries {
			return res, nil
		}
		s.grow(s.bufs.AppIn)
	}
}

// grow raises the buffer set to the engine's current size hints. When the
// hints do not enlarge b, b gets at least twice its capacity in free
// space instead.
func (s *Socket) grow(b *buffer.Buffer) {
	before := b.Cap()
	info := s.engine.Session()
	s.bufs.Grow(info.PacketBufferSize, info.ApplicationBufferSize)
	if b.Cap() == before {
		b.Reserve(2 * before)
	}
}

// handshakeOp names the handshake operation of role in errors.
func handshakeOp(role engine.Role) string {
	if role == engine.RoleClient {
		return "connect"
	}
	return "accept"
}

// engineError classifies an engine failure.
func (s *Socket) engineError(op string, err error) error {
	kind := KindProtocol
	if s.initialHandshake || errors.Is(err, engine.ErrHandshakeFailed) {
		kind = KindHandshake
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
