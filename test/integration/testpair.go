// Package integration provides test infrastructure for echo E2E tests.
package integration

import (
	"context"
	"crypto/tls"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/ossl/examples/common"
	"github.com/backkem/ossl/examples/echo"
	"github.com/backkem/ossl/pkg/channel"
	"github.com/backkem/ossl/pkg/credentials"
	"github.com/backkem/ossl/pkg/discovery"
	"github.com/backkem/ossl/pkg/transport"
	"github.com/pion/logging"
)

// Credentials holds PEM files issued by one test authority.
type Credentials struct {
	CA         string
	ServerCert string
	ServerKey  string
	ClientCert string
	ClientKey  string
}

// NewCredentials issues a server and a client certificate under a fresh
// authority and writes everything to a temporary directory.
func NewCredentials(t *testing.T) Credentials {
	t.Helper()
	dir := t.TempDir()

	caConfig := credentials.DefaultCertificateConfig()
	caConfig.CommonName = "echo test CA"
	ca, err := credentials.NewAuthority(caConfig)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}

	c := Credentials{
		CA:         filepath.Join(dir, "ca.pem"),
		ServerCert: filepath.Join(dir, "server.pem"),
		ServerKey:  filepath.Join(dir, "server.key"),
		ClientCert: filepath.Join(dir, "client.pem"),
		ClientKey:  filepath.Join(dir, "client.key"),
	}
	caPair := tls.Certificate{Certificate: [][]byte{ca.Certificate.Raw}, PrivateKey: ca.Key}
	if err := credentials.WriteKeyPair(caPair, c.CA, filepath.Join(dir, "ca.key")); err != nil {
		t.Fatalf("WriteKeyPair(ca) error = %v", err)
	}

	issue := func(cn, certFile, keyFile string) {
		config := credentials.DefaultCertificateConfig()
		config.CommonName = cn
		pair, err := ca.Issue(config)
		if err != nil {
			t.Fatalf("Issue(%s) error = %v", cn, err)
		}
		if err := credentials.WriteKeyPair(pair, certFile, keyFile); err != nil {
			t.Fatalf("WriteKeyPair(%s) error = %v", cn, err)
		}
	}
	issue("localhost", c.ServerCert, c.ServerKey)
	issue("echo client", c.ClientCert, c.ClientKey)
	return c
}

// TestPairConfig configures the test pair creation.
type TestPairConfig struct {
	// Server and Client are the CLI options for each side. Mode is set by
	// NewTestPair.
	Server common.Options
	Client common.Options

	// Condition adds delay to the pipe.
	Condition transport.NetworkCondition

	// Discover makes the client find the server through the mock mDNS.
	Discover bool

	// ConnectTimeout bounds Connect. Defaults to 10 seconds.
	ConnectTimeout time.Duration

	// LoggerFactory for logging. If nil, uses DefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory
}

// DefaultTestPairConfig returns options accepting any peer.
func DefaultTestPairConfig() TestPairConfig {
	return TestPairConfig{
		Server:         common.DefaultOptions(),
		Client:         common.DefaultOptions(),
		ConnectTimeout: 10 * time.Second,
	}
}

// TestPair is an echo server and client joined by an in-memory pipe.
type TestPair struct {
	Pipe   *transport.Pipe
	Server *echo.Server
	Client *echo.Client
	MDNS   *discovery.MockMDNSResolver

	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTestPair starts a server, connects a client and completes the
// handshake. Connection failures end the test.
func NewTestPair(t *testing.T, config TestPairConfig) *TestPair {
	t.Helper()
	p, err := StartTestPair(t, config)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return p
}

// StartTestPair is NewTestPair returning the Connect error, for tests
// expecting the handshake to fail. The pair is closed on cleanup.
func StartTestPair(t *testing.T, config TestPairConfig) (*TestPair, error) {
	t.Helper()
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	lf := config.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	config.Server.Mode = common.ModeServer
	config.Client.Mode = common.ModeClient
	serverCtx, err := common.BuildContext(config.Server, lf)
	if err != nil {
		t.Fatalf("BuildContext(server) error = %v", err)
	}
	clientCtx, err := common.BuildContext(config.Client, lf)
	if err != nil {
		t.Fatalf("BuildContext(client) error = %v", err)
	}

	pipe := transport.NewPipe()
	pipe.SetCondition(config.Condition)
	p := &TestPair{
		Pipe: pipe,
		MDNS: discovery.NewMockMDNSResolver(),
		t:    t,
	}
	p.ctx, p.cancel = context.WithTimeout(context.Background(), config.ConnectTimeout)
	t.Cleanup(p.Close)

	p.Server, err = echo.NewServer(echo.ServerConfig{
		Context:       serverCtx,
		Listener:      pipe.Listener(transport.DefaultPort),
		Nonblock:      config.Server.Nonblock,
		Advertise:     config.Discover,
		Hostname:      config.Server.Hostname,
		ServerFactory: p.MDNS,
		LoggerFactory: lf,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := p.Server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	clientConfig := echo.ClientConfig{
		Context:  clientCtx,
		Addr:     config.Client.Addr,
		Hostname: config.Client.Hostname,
		Nonblock: config.Client.Nonblock,
		Dial: func(ctx context.Context, addr string) (channel.Channel, error) {
			chConfig := channel.DefaultConfig()
			chConfig.LoggerFactory = lf
			return channel.FromConn(pipe.Conn(1, transport.DefaultPort), chConfig), nil
		},
		LoggerFactory: lf,
	}
	if config.Discover {
		clientConfig.Hostname = ""
		clientConfig.Resolver, err = discovery.NewResolver(discovery.ResolverConfig{
			MDNSResolver:  p.MDNS,
			BrowseTimeout: time.Second,
			LoggerFactory: lf,
		})
		if err != nil {
			t.Fatalf("NewResolver() error = %v", err)
		}
	}
	p.Client, err = echo.NewClient(clientConfig)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return p, p.Client.Connect(p.ctx)
}

// Context returns the context bounding the pair.
func (p *TestPair) Context() context.Context {
	return p.ctx
}

// Close closes the client, stops the server and the pipe.
func (p *TestPair) Close() {
	p.cancel()
	if p.Client != nil {
		p.Client.Close()
	}
	if p.Server != nil {
		p.Server.Stop()
	}
	p.Pipe.Close()
}
