package ssl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/backkem/ossl/pkg/channel"
	"github.com/backkem/ossl/pkg/engine"
	"github.com/backkem/ossl/pkg/engine/enginetest"
	"github.com/backkem/ossl/pkg/waiter"
	"github.com/pion/transport/v3/test"
	"golang.org/x/sync/errgroup"
)

// stubPair is a client and server socket over an in-memory channel pair,
// each with its own stub provider.
type stubPair struct {
	client, server       *Socket
	clientCh, serverCh   channel.Channel
	clientEng, serverEng *enginetest.Provider
}

func newStubPair(t *testing.T, chCfg channel.Config, clientCfg, serverCfg enginetest.Config, mode VerifyMode) *stubPair {
	t.Helper()

	p := &stubPair{
		clientEng: enginetest.NewProvider(clientCfg),
		serverEng: enginetest.NewProvider(serverCfg),
	}
	p.clientCh, p.serverCh = channel.NewPair(chCfg)

	cctx, err := NewContext(ContextConfig{Provider: p.clientEng, VerifyMode: mode})
	if err != nil {
		t.Fatalf("NewContext(client) error = %v", err)
	}
	sctx, err := NewContext(ContextConfig{Provider: p.serverEng, VerifyMode: mode})
	if err != nil {
		t.Fatalf("NewContext(server) error = %v", err)
	}

	p.client = NewSocket(p.clientCh, cctx, DefaultConfig())
	p.server = NewSocket(p.serverCh, sctx, DefaultConfig())
	return p
}

func (p *stubPair) close() {
	p.client.Close()
	p.server.Close()
}

func (p *stubPair) handshake(t *testing.T) {
	t.Helper()
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return p.client.Connect(ctx) })
	g.Go(func() error { return p.server.Accept(ctx) })
	if err := g.Wait(); err != nil {
		t.Fatalf("handshake error = %v", err)
	}
}

func (p *stubPair) clientEngine() *enginetest.Engine { return p.clientEng.Engines()[0] }
func (p *stubPair) serverEngine() *enginetest.Engine { return p.serverEng.Engines()[0] }

func TestSocket_Handshake(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{Key: 0x5a}, enginetest.Config{Key: 0x5a}, VerifyNone)
	defer p.close()

	if p.client.State() != StateIdle {
		t.Fatalf("State() before connect = %s", p.client.State())
	}
	p.handshake(t)

	for _, s := range []*Socket{p.client, p.server} {
		if got := s.HandshakeStatus(); got != engine.Finished {
			t.Errorf("%s HandshakeStatus() = %s, want FINISHED", s.Role(), got)
		}
		if got := s.VerifyResult(); got != VerifyOK {
			t.Errorf("%s VerifyResult() = %s, want ok", s.Role(), got)
		}
		if got := s.State(); got != StateEstablished {
			t.Errorf("%s State() = %s", s.Role(), got)
		}
		info, ok := s.Cipher()
		if !ok || info.Name != enginetest.CipherSuite || info.Bits != 8 {
			t.Errorf("%s Cipher() = %+v, %v", s.Role(), info, ok)
		}
		if s.Version() != "STUBv1" {
			t.Errorf("%s Version() = %q", s.Role(), s.Version())
		}
	}
	if p.client.Role() != engine.RoleClient || p.server.Role() != engine.RoleServer {
		t.Errorf("roles = %s, %s", p.client.Role(), p.server.Role())
	}
	if !p.clientEngine().IsClient() || p.serverEngine().IsClient() {
		t.Error("engine client mode not applied")
	}
}

func TestSocket_ConnectAfterFinishedIsNoop(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.handshake(t)

	eng := p.clientEngine()
	wraps, unwraps := eng.WrapCalls, eng.UnwrapCalls
	if err := p.client.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if eng.WrapCalls != wraps || eng.UnwrapCalls != unwraps {
		t.Error("second Connect() touched the engine")
	}
	if err := p.client.Accept(context.Background()); !errors.Is(err, ErrWrongRole) {
		t.Errorf("Accept() on client error = %v, want ErrWrongRole", err)
	}
}

func TestSocket_IODuringHandshake(t *testing.T) {
	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()

	if _, err := p.client.Read(make([]byte, 1)); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Read() before connect error = %v, want ErrNotStarted", err)
	}

	// The client hello goes out; the server hello never arrives.
	if err := p.client.ConnectNonblock(context.Background()); !errors.Is(err, ErrWouldBlockRead) {
		t.Fatalf("ConnectNonblock() error = %v, want ErrWouldBlockRead", err)
	}
	if p.client.State() != StateHandshaking {
		t.Fatalf("State() = %s, want handshaking", p.client.State())
	}
	if _, err := p.client.Read(make([]byte, 1)); !errors.Is(err, ErrReadDuringHandshake) {
		t.Errorf("Read() error = %v, want ErrReadDuringHandshake", err)
	}
	if _, err := p.client.Write([]byte("x")); !errors.Is(err, ErrWriteDuringHandshake) {
		t.Errorf("Write() error = %v, want ErrWriteDuringHandshake", err)
	}
	if err := p.client.SetHostname("example.com"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("SetHostname() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestSocket_NonblockingHandshake(t *testing.T) {
	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{Key: 7}, enginetest.Config{Key: 7}, VerifyNone)
	defer p.close()

	ctx := context.Background()
	clientDone, serverDone := false, false
	for i := 0; i < 10 && !(clientDone && serverDone); i++ {
		if !clientDone {
			err := p.client.ConnectNonblock(ctx)
			if err != nil && !IsWouldBlock(err) {
				t.Fatalf("ConnectNonblock() error = %v", err)
			}
			clientDone = err == nil
		}
		if !serverDone {
			err := p.server.AcceptNonblock(ctx)
			if err != nil && !IsWouldBlock(err) {
				t.Fatalf("AcceptNonblock() error = %v", err)
			}
			serverDone = err == nil
		}
	}
	if !clientDone || !serverDone {
		t.Fatal("non-blocking handshake did not finish")
	}

	buf := make([]byte, 8)
	if _, err := p.server.ReadNonblock(buf); !errors.Is(err, ErrWouldBlockRead) {
		t.Fatalf("ReadNonblock() on idle session error = %v, want ErrWouldBlockRead", err)
	}
	if _, err := p.client.SysWriteNonblock([]byte("ping")); err != nil {
		t.Fatalf("SysWriteNonblock() error = %v", err)
	}
	got, err := p.server.SysReadNonblock(8)
	if err != nil || string(got) != "ping" {
		t.Fatalf("SysReadNonblock() = %q, %v", got, err)
	}
}

func TestSocket_RoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 16384, 16385, 100000} {
		size := size
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			report := test.CheckRoutines(t)
			defer report()
			lim := test.TimeOut(10 * time.Second)
			defer lim.Stop()

			p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{Key: 0xa5}, enginetest.Config{Key: 0xa5}, VerifyNone)
			defer p.close()
			p.handshake(t)

			payload := bytes.Repeat([]byte{'a', 'b', 'c'}, size/3+1)[:size]

			var g errgroup.Group
			g.Go(func() error {
				_, err := p.client.Write(payload)
				return err
			})
			got, err := p.server.ReadFull(size)
			if err != nil {
				t.Fatalf("ReadFull(%d) error = %v", size, err)
			}
			if err := g.Wait(); err != nil {
				t.Fatalf("Write(%d) error = %v", size, err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("payload mismatch at size %d", size)
			}

			// Echo back through the other direction.
			g.Go(func() error {
				_, err := p.server.Write(got)
				return err
			})
			back, err := p.client.ReadFull(size)
			if err != nil || !bytes.Equal(back, payload) {
				t.Fatalf("echo ReadFull(%d) error = %v", size, err)
			}
			if err := g.Wait(); err != nil {
				t.Fatalf("echo Write(%d) error = %v", size, err)
			}
		})
	}
}

func TestSocket_OverflowGrowth(t *testing.T) {
	lim := test.TimeOut(10 * time.Second)
	defer lim.Stop()

	// The server advertises buffers far smaller than the records it gets.
	small := enginetest.Config{Key: 7, ApplicationBufferSize: 100, PacketBufferSize: 105}
	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{Key: 7}, small, VerifyNone)
	defer p.close()
	p.handshake(t)

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1024)

	var g errgroup.Group
	g.Go(func() error {
		_, err := p.client.Write(payload)
		return err
	})
	got, err := p.server.ReadFull(len(payload))
	if err != nil {
		t.Fatalf("ReadFull(%d) error = %v", len(payload), err)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch after buffer growth")
	}
}

func TestSocket_SysWriteIsOneRecord(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.handshake(t)

	n, err := p.client.SysWrite(context.Background(), make([]byte, 20000))
	if err != nil {
		t.Fatalf("SysWrite() error = %v", err)
	}
	if n != enginetest.DefaultApplicationBufferSize {
		t.Fatalf("SysWrite() = %d, want one record of %d", n, enginetest.DefaultApplicationBufferSize)
	}
	got, err := p.server.SysRead(context.Background(), 20000)
	if err != nil || len(got) != n {
		t.Fatalf("SysRead() = %d bytes, %v", len(got), err)
	}
	if p.server.Pending() != 0 {
		t.Errorf("Pending() = %d after full read", p.server.Pending())
	}
}

func TestSocket_WriteWouldBlock(t *testing.T) {
	p := newStubPair(t, channel.Config{Capacity: 64}, enginetest.Config{Key: 1}, enginetest.Config{Key: 1}, VerifyNone)
	defer p.close()
	p.handshake(t)

	first := bytes.Repeat([]byte{'x'}, 100)
	if n, err := p.client.SysWriteNonblock(first); n != 100 || err != nil {
		t.Fatalf("SysWriteNonblock() = %d, %v; want 100, nil", n, err)
	}
	// Part of the record is still queued and the channel is full.
	if _, err := p.client.SysWriteNonblock([]byte("y")); !errors.Is(err, ErrWouldBlockWrite) {
		t.Fatalf("SysWriteNonblock() on full channel error = %v, want ErrWouldBlockWrite", err)
	}
	// The server sees a partial record only.
	if _, err := p.server.ReadNonblock(make([]byte, 200)); !errors.Is(err, ErrWouldBlockRead) {
		t.Fatalf("ReadNonblock() on partial record error = %v, want ErrWouldBlockRead", err)
	}
	if n, err := p.client.SysWriteNonblock([]byte("z")); n != 1 || err != nil {
		t.Fatalf("SysWriteNonblock() after drain = %d, %v", n, err)
	}

	got, err := p.server.ReadFull(101)
	if err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if want := append(first, 'z'); !bytes.Equal(got, want) {
		t.Fatalf("ReadFull() = %q", got)
	}
}

func TestSocket_FlushNonblock(t *testing.T) {
	p := newStubPair(t, channel.Config{Capacity: 64}, enginetest.Config{Key: 1}, enginetest.Config{Key: 1}, VerifyNone)
	defer p.close()

	if err := p.client.FlushNonblock(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("FlushNonblock() before start error = %v, want ErrNotStarted", err)
	}
	if n := p.client.Buffered(); n != 0 {
		t.Errorf("Buffered() before start = %d", n)
	}
	p.handshake(t)

	msg := bytes.Repeat([]byte{'f'}, 100)
	if n, err := p.client.SysWriteNonblock(msg); n != 100 || err != nil {
		t.Fatalf("SysWriteNonblock() = %d, %v", n, err)
	}
	if p.client.Buffered() == 0 {
		t.Fatal("Buffered() = 0 with a full channel")
	}
	if err := p.client.FlushNonblock(); !errors.Is(err, ErrWouldBlockWrite) {
		t.Fatalf("FlushNonblock() on full channel error = %v, want ErrWouldBlockWrite", err)
	}

	// The server drains the partial record, making room for the rest.
	if _, err := p.server.ReadNonblock(make([]byte, 200)); !errors.Is(err, ErrWouldBlockRead) {
		t.Fatalf("ReadNonblock() error = %v, want ErrWouldBlockRead", err)
	}
	if err := p.client.FlushNonblock(); err != nil {
		t.Fatalf("FlushNonblock() error = %v", err)
	}
	if n := p.client.Buffered(); n != 0 {
		t.Errorf("Buffered() after flush = %d", n)
	}

	got, err := p.server.ReadFull(len(msg))
	if err != nil || !bytes.Equal(got, msg) {
		t.Fatalf("ReadFull() = %q, %v", got, err)
	}
}

func TestSocket_ReadAfterCloseNotify(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.handshake(t)

	if _, err := p.client.Write([]byte("bye")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := p.client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := p.server.ReadFull(3)
	if err != nil || string(got) != "bye" {
		t.Fatalf("ReadFull() = %q, %v", got, err)
	}
	if _, err := p.server.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("Read() after close_notify error = %v, want io.EOF", err)
	}
	if !p.serverEngine().IsInboundDone() {
		t.Error("server inbound not done after close_notify")
	}
	// Subsequent reads keep reporting end-of-stream.
	if _, err := p.server.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("second Read() error = %v, want io.EOF", err)
	}
	if _, err := p.client.Read(make([]byte, 1)); !errors.Is(err, ErrClosedStream) {
		t.Fatalf("Read() on closed socket error = %v, want ErrClosedStream", err)
	}
}

func TestSocket_NegativeReadSize(t *testing.T) {
	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.handshake(t)

	if _, err := p.server.SysRead(context.Background(), -1); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("SysRead(-1) error = %v, want ErrNegativeSize", err)
	}
	if _, err := p.server.SysReadNonblock(-1); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("SysReadNonblock(-1) error = %v, want ErrNegativeSize", err)
	}
}

func TestSocket_ReadAfterRawEOF(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.handshake(t)

	// The peer goes away without close_notify.
	if err := p.clientCh.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite() error = %v", err)
	}
	if _, err := p.server.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("Read() after raw EOF error = %v, want io.EOF", err)
	}
	if _, err := p.server.SysReadNonblock(1); err != io.EOF {
		t.Fatalf("SysReadNonblock() after raw EOF error = %v, want io.EOF", err)
	}
}

func TestSocket_Close(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	p.handshake(t)

	if err := p.server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.server.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if p.server.State() != StateClosed {
		t.Errorf("State() = %s, want closed", p.server.State())
	}
	if p.serverCh.IsOpen() {
		t.Error("SyncClose did not close the channel")
	}
	if !p.serverEngine().IsOutboundDone() {
		t.Error("close_notify was not sent")
	}
	if err := p.server.Accept(context.Background()); !errors.Is(err, ErrClosedStream) {
		t.Errorf("Accept() after Close error = %v, want ErrClosedStream", err)
	}
	if _, err := p.server.Write([]byte("x")); !errors.Is(err, ErrClosedStream) {
		t.Errorf("Write() after Close error = %v, want ErrClosedStream", err)
	}

	if _, err := p.client.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("peer Read() error = %v, want io.EOF", err)
	}
	p.client.Close()
}

func TestSocket_ServerCloseFlushesQueued(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.Config{Capacity: 64}, enginetest.Config{Key: 1}, enginetest.Config{Key: 1}, VerifyNone)
	defer p.close()
	p.handshake(t)

	msg := bytes.Repeat([]byte{'q'}, 100)
	if n, err := p.server.SysWriteNonblock(msg); n != 100 || err != nil {
		t.Fatalf("SysWriteNonblock() = %d, %v", n, err)
	}
	if p.server.Buffered() == 0 {
		t.Fatal("Buffered() = 0 with a full channel")
	}

	var g errgroup.Group
	var got []byte
	g.Go(func() error {
		var err error
		got, err = p.client.ReadFull(len(msg))
		return err
	})
	if err := p.server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("ReadFull() = %q", got)
	}
	if !p.serverEngine().IsOutboundDone() {
		t.Error("close_notify was not sent after the queued records")
	}
	if _, err := p.client.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("Read() after close_notify error = %v, want io.EOF", err)
	}
}

func TestSocket_ServerCloseDrainIsBounded(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.Config{Capacity: 64}, enginetest.Config{Key: 1}, enginetest.Config{Key: 1}, VerifyNone)
	defer p.close()
	p.handshake(t)

	if _, err := p.server.SysWriteNonblock(bytes.Repeat([]byte{'q'}, 100)); err != nil {
		t.Fatalf("SysWriteNonblock() error = %v", err)
	}

	// The client never reads, so the drain gives up.
	start := time.Now()
	if err := p.server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < closeTimeout {
		t.Errorf("Close() returned after %v, want the full drain window", elapsed)
	}
	if p.server.State() != StateClosed {
		t.Errorf("State() = %s, want closed", p.server.State())
	}
}

func TestSocket_CloseBeforeStart(t *testing.T) {
	a, b := channel.NewPair(channel.DefaultConfig())
	defer b.Close()

	ctx, err := NewContext(ContextConfig{Provider: enginetest.NewProvider(enginetest.Config{})})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	s := NewSocket(a, ctx, DefaultConfig())
	err = s.Close()
	if !errors.Is(err, ErrNotStarted) || !errors.Is(err, io.EOF) {
		t.Fatalf("Close() before start error = %v, want ErrNotStarted and io.EOF", err)
	}
	if a.IsOpen() {
		t.Error("channel left open")
	}
	if s.VerifyResult() != VerifyNotEvaluated {
		t.Errorf("VerifyResult() = %s", s.VerifyResult())
	}
}

func TestSocket_KeepChannelOpen(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.client.config.SyncClose = false
	p.handshake(t)

	if err := p.client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !p.clientCh.IsOpen() {
		t.Fatal("channel closed without SyncClose")
	}
	p.clientCh.Close()
}

func TestSocket_WrongRoleMethod(t *testing.T) {
	a, b := channel.NewPair(channel.DefaultConfig())
	defer a.Close()
	defer b.Close()

	ctx, err := NewContext(ContextConfig{
		Version:  "TLSv1_2_server",
		Provider: enginetest.NewProvider(enginetest.Config{}),
	})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	s := NewSocket(a, ctx, DefaultConfig())
	if err := s.Connect(context.Background()); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("Connect() error = %v, want ErrWrongRole", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %s after refused connect", s.State())
	}
}

func TestSocket_HandshakeFailure(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	boom := errors.New("bad hello")
	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{FailHandshake: boom}, VerifyNone)
	defer p.close()

	var g errgroup.Group
	g.Go(func() error { return p.client.Connect(context.Background()) })

	err := p.server.Accept(context.Background())
	if !errors.Is(err, ErrHandshake) || !errors.Is(err, engine.ErrHandshakeFailed) {
		t.Fatalf("Accept() error = %v, want handshake failure", err)
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindHandshake {
		t.Fatalf("Accept() error = %#v, want *Error of KindHandshake", err)
	}
	p.server.Close()

	if err := g.Wait(); !errors.Is(err, ErrHandshake) {
		t.Fatalf("Connect() error = %v, want ErrHandshake", err)
	}
	if !p.clientEngine().IsOutboundDone() {
		t.Error("client did not shut down after the failed handshake")
	}
}

func TestSocket_AcceptPeerGone(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()

	if err := p.clientCh.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite() error = %v", err)
	}
	err := p.server.Accept(context.Background())
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("Accept() error = %v, want *Error", err)
	}
	if serr.Op != "accept" || serr.Kind != KindHandshake {
		t.Errorf("Accept() error = %q, want accept handshake failure", err)
	}
	if !strings.HasPrefix(err.Error(), "ssl: accept: ") {
		t.Errorf("Accept() error text = %q", err)
	}
}

func TestSocket_VerifyRejectsMissingCertificate(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	// The client verifies the server, which presents no certificate.
	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	cctx, err := NewContext(ContextConfig{Provider: p.clientEng, VerifyMode: VerifyPeer})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	p.client.ctx = cctx

	var g errgroup.Group
	g.Go(func() error { return p.server.Accept(context.Background()) })

	err = p.client.Connect(context.Background())
	if !errors.Is(err, ErrHandshake) || !errors.Is(err, ErrPeerCertificateMissing) {
		t.Fatalf("Connect() error = %v, want missing certificate", err)
	}
	if got := p.client.VerifyResult(); got != VerifyCertRejected {
		t.Errorf("VerifyResult() = %s, want %s", got, VerifyCertRejected)
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	// The fatal alert reaches the server on its next read.
	_, err = p.server.Read(make([]byte, 1))
	if !errors.Is(err, ErrHandshake) {
		t.Fatalf("server Read() error = %v, want ErrHandshake", err)
	}
}

func TestSocket_ServerClientAuthFlags(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	tests := []struct {
		mode       VerifyMode
		want, need bool
	}{
		{VerifyNone, false, false},
		{VerifyPeer, true, false},
		{VerifyPeer | VerifyFailIfNoPeerCert, true, true},
	}
	for _, tt := range tests {
		prov := enginetest.NewProvider(enginetest.Config{})
		ctx, err := NewContext(ContextConfig{Provider: prov, VerifyMode: tt.mode})
		if err != nil {
			t.Fatalf("NewContext() error = %v", err)
		}
		a, b := channel.NewPair(channel.DefaultConfig())
		s := NewSocket(a, ctx, DefaultConfig())
		if err := s.AcceptNonblock(context.Background()); !IsWouldBlock(err) {
			t.Fatalf("AcceptNonblock() error = %v, want would-block", err)
		}
		eng := prov.Engines()[0]
		if eng.WantClientAuth != tt.want || eng.NeedClientAuth != tt.need {
			t.Errorf("mode %s: want=%v need=%v", tt.mode, eng.WantClientAuth, eng.NeedClientAuth)
		}
		s.Close()
		b.Close()
	}
}

func TestSocket_KeyUpdateReentersHandshake(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{Key: 3}, enginetest.Config{Key: 3}, VerifyNone)
	defer p.close()
	p.handshake(t)

	p.clientEngine().RequestKeyUpdate()
	if _, err := p.client.Write([]byte("after")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	wraps := p.serverEngine().WrapCalls
	got, err := p.server.ReadFull(5)
	if err != nil || string(got) != "after" {
		t.Fatalf("ReadFull() = %q, %v", got, err)
	}
	if p.serverEngine().WrapCalls == wraps {
		t.Error("server did not answer the key update")
	}
	if got := p.server.HandshakeStatus(); got == engine.NeedWrap {
		t.Error("HandshakeStatus() still NEED_WRAP after the answer")
	}

	// The answer is consumed transparently on the client read path.
	if _, err := p.server.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	back, err := p.client.ReadFull(2)
	if err != nil || string(back) != "ok" {
		t.Fatalf("client ReadFull() = %q, %v", back, err)
	}
}

func TestSocket_Deadline(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	p := newStubPair(t, channel.DefaultConfig(), enginetest.Config{}, enginetest.Config{}, VerifyNone)
	defer p.close()
	p.handshake(t)

	p.server.SetDeadline(time.Now().Add(20 * time.Millisecond))
	if _, err := p.server.Read(make([]byte, 1)); !errors.Is(err, waiter.ErrTimeout) {
		t.Fatalf("Read() error = %v, want ErrTimeout", err)
	}
	p.server.SetDeadline(time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.server.SysRead(ctx, 1); !errors.Is(err, waiter.ErrInterrupted) {
		t.Fatalf("SysRead() with canceled context error = %v, want ErrInterrupted", err)
	}
}

func TestSocket_HandshakeTimeout(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	a, b := channel.NewPair(channel.DefaultConfig())
	defer b.Close()

	ctx, err := NewContext(ContextConfig{
		Provider: enginetest.NewProvider(enginetest.Config{}),
		Timeout:  20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	s := NewSocket(a, ctx, DefaultConfig())
	defer s.Close()

	// Nobody answers on b.
	if err := s.Connect(context.Background()); !errors.Is(err, waiter.ErrTimeout) {
		t.Fatalf("Connect() error = %v, want ErrTimeout", err)
	}
}
