package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/backkem/ossl/pkg/channel"
	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation. A TLS record
// stream cannot survive loss or duplication, so only delay is simulated.
type NetworkCondition struct {
	// DelayMin is the minimum delay to add to each write.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each write.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides bidirectional in-memory communication between two
// endpoints. It wraps pion's test.Bridge and adds delay simulation.
//
// By default, Pipe delivers queued writes in a background goroutine.
// Use SetAutoProcess(false) and Tick or Process for manual control.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}

	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p
}

// startAutoProcess starts the background delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				for p.bridge.Tick() > 0 {
				}
			}
		}
	}()
}

// SetAutoProcess enables or disables automatic delivery.
// When disabled, you must call Tick() or Process() manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}

	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures delay simulation for writes in both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current network condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// delay returns the delay to apply to the next write.
func (p *Pipe) delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	cond := p.condition
	if cond.DelayMax <= 0 {
		return 0
	}
	d := cond.DelayMin
	if cond.DelayMax > cond.DelayMin {
		d += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
	}
	return d
}

// Conn returns endpoint id (0 or 1) as a net.Conn carrying pipe
// addresses on the given logical port.
func (p *Pipe) Conn(id, port int) net.Conn {
	raw := p.bridge.GetConn0()
	if id != 0 {
		id = 1
		raw = p.bridge.GetConn1()
	}
	return &PipeConn{
		conn:       raw,
		localAddr:  PipeAddr{ID: id, Port: port},
		remoteAddr: PipeAddr{ID: 1 - id, Port: port},
		pipe:       p,
	}
}

// Channels wraps both endpoints in channels. The first channel is
// endpoint 0.
func (p *Pipe) Channels(config channel.Config) (*channel.Stream, *channel.Stream) {
	return channel.FromConn(p.Conn(0, DefaultPort), config),
		channel.FromConn(p.Conn(1, DefaultPort), config)
}

// Listener returns a listener on endpoint 0 that accepts exactly one
// connection. Use Conn(1, port) as the dialing side.
func (p *Pipe) Listener(port int) net.Listener {
	return &PipeListener{
		conn:    p.Conn(0, port),
		closeCh: make(chan struct{}),
	}
}

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued packets.
// Returns the number of packets delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints of the pipe and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID   int // Endpoint ID (0 or 1)
	Port int // Logical port number
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d:%d", a.ID, a.Port) }

// PipeListener implements net.Listener for a single pipe endpoint.
type PipeListener struct {
	conn    net.Conn
	closeCh chan struct{}

	mu       sync.Mutex
	accepted bool
	closed   bool
}

// Accept returns the pipe endpoint on the first call. Subsequent calls
// block until Close.
func (l *PipeListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.Addr(), Err: net.ErrClosed}
	}
	if l.accepted {
		l.mu.Unlock()
		<-l.closeCh
		return nil, &net.OpError{Op: "accept", Net: "pipe", Addr: l.Addr(), Err: net.ErrClosed}
	}
	l.accepted = true
	l.mu.Unlock()

	return l.conn, nil
}

// Close closes the listener. An accepted connection stays open.
func (l *PipeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.closeCh)
	return nil
}

// Addr returns the listener's network address.
func (l *PipeListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

var _ net.Listener = (*PipeListener)(nil)

// PipeConn wraps a bridge endpoint with pipe addresses and write delay.
type PipeConn struct {
	conn       net.Conn
	localAddr  PipeAddr
	remoteAddr PipeAddr
	pipe       *Pipe
}

// Read reads data from the connection.
func (c *PipeConn) Read(b []byte) (n int, err error) {
	return c.conn.Read(b)
}

// Write writes data to the connection after the configured delay.
func (c *PipeConn) Write(b []byte) (n int, err error) {
	if d := c.pipe.delay(); d > 0 {
		time.Sleep(d)
	}
	return c.conn.Write(b)
}

// Close closes the connection.
func (c *PipeConn) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the local network address.
func (c *PipeConn) LocalAddr() net.Addr {
	return c.localAddr
}

// RemoteAddr returns the remote network address.
func (c *PipeConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// SetDeadline sets the read and write deadlines.
func (c *PipeConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (c *PipeConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline.
func (c *PipeConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

var _ net.Conn = (*PipeConn)(nil)
