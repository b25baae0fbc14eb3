package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/backkem/ossl/pkg/channel"
)

// echoHandler echoes every byte back until the peer closes.
func echoHandler(ch channel.Channel, _ PeerAddress) {
	reg := ch.Register(channel.Readable)
	defer reg.Cancel()

	buf := make([]byte, 4096)
	for {
		n, err := ch.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			<-reg.C()
			if !ch.IsOpen() {
				return
			}
			continue
		}
		if err := writeAll(ch, buf[:n]); err != nil {
			return
		}
	}
}

func TestNewListener(t *testing.T) {
	t.Run("with handler", func(t *testing.T) {
		l, err := NewListener(ListenerConfig{ListenAddr: "127.0.0.1:0", Handler: echoHandler})
		if err != nil {
			t.Fatalf("NewListener() error = %v", err)
		}
		defer l.Stop()

		if _, ok := l.Addr().(*net.TCPAddr); !ok {
			t.Errorf("Addr() = %T, want *net.TCPAddr", l.Addr())
		}
	})

	t.Run("without handler", func(t *testing.T) {
		_, err := NewListener(ListenerConfig{ListenAddr: "127.0.0.1:0"})
		if !errors.Is(err, ErrNoHandler) {
			t.Errorf("NewListener() error = %v, want %v", err, ErrNoHandler)
		}
	})

	t.Run("with injected listener", func(t *testing.T) {
		p := NewPipe()
		defer p.Close()

		injected := p.Listener(DefaultPort)
		l, err := NewListener(ListenerConfig{Listener: injected, Handler: echoHandler})
		if err != nil {
			t.Fatalf("NewListener() error = %v", err)
		}
		defer l.Stop()

		if l.Addr() != injected.Addr() {
			t.Error("NewListener() did not use injected listener")
		}
	})
}

func TestListener_StartStop(t *testing.T) {
	l, err := NewListener(ListenerConfig{ListenAddr: "127.0.0.1:0", Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}

	if err := l.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if err := l.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := l.Stop(); !errors.Is(err, ErrClosed) {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrClosed)
	}
	if err := l.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrClosed)
	}
}

func TestListener_Roundtrip(t *testing.T) {
	peers := make(chan PeerAddress, 1)
	l, err := NewListener(ListenerConfig{
		ListenAddr: "127.0.0.1:0",
		Handler: func(ch channel.Channel, peer PeerAddress) {
			peers <- peer
			echoHandler(ch, peer)
		},
	})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, l.Addr().String(), channel.DefaultConfig())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	payload := bytes.Repeat([]byte("hello from client "), 1000)
	errCh := make(chan error, 1)
	go func() { errCh <- writeAll(client, payload) }()
	if got := readN(t, client, len(payload)); !bytes.Equal(got, payload) {
		t.Fatal("echo mismatch")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("writeAll() error = %v", err)
	}

	select {
	case peer := <-peers:
		if peer.TransportType != TransportTypeTCP {
			t.Errorf("TransportType = %v, want TCP", peer.TransportType)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	if n := l.Connections(); n != 1 {
		t.Errorf("Connections() = %d, want 1", n)
	}
}

func TestListener_OverPipe(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	l, err := NewListener(ListenerConfig{Listener: p.Listener(DefaultPort), Handler: echoHandler})
	if err != nil {
		t.Fatalf("NewListener() error = %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	client := channel.FromConn(p.Conn(1, DefaultPort), channel.DefaultConfig())
	defer client.Close()

	if err := writeAll(client, []byte("ping")); err != nil {
		t.Fatalf("writeAll() error = %v", err)
	}
	if got := readN(t, client, 4); string(got) != "ping" {
		t.Fatalf("read %q, want ping", got)
	}
}

func TestDial_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Dial(ctx, "", channel.DefaultConfig()); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Dial(\"\") error = %v, want %v", err, ErrInvalidAddress)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	if _, err := Dial(ctx, addr, channel.DefaultConfig()); err == nil {
		t.Error("Dial() to a closed port should fail")
	}
}

func TestPeerAddress(t *testing.T) {
	peer, err := TCPAddrFromString("127.0.0.1:4433")
	if err != nil {
		t.Fatalf("TCPAddrFromString() error = %v", err)
	}
	if !peer.IsValid() || peer.String() != "TCP:127.0.0.1:4433" {
		t.Errorf("peer = %v", peer)
	}
	if (PeerAddress{}).IsValid() {
		t.Error("zero PeerAddress is valid")
	}
	if _, err := TCPAddrFromString("not an address"); err == nil {
		t.Error("TCPAddrFromString() accepted garbage")
	}
}
