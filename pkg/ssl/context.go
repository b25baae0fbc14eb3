package ssl

import (
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/backkem/ossl/pkg/engine"
	"github.com/pion/logging"
)

// ContextConfig configures a Context.
type ContextConfig struct {
	// Version is the method name: "SSLv23", "TLS", "TLSv1", "TLSv1_1",
	// "TLSv1_2" or "TLSv1_3", optionally suffixed with "_client" or
	// "_server" to restrict the role. Empty means "SSLv23".
	Version string

	// Ciphers is an OpenSSL-style cipher string. Empty means "DEFAULT".
	Ciphers string

	// VerifyMode selects peer verification.
	VerifyMode VerifyMode

	// VerifyHostname makes clients check the server certificate against
	// the socket hostname.
	VerifyHostname bool

	// Roots verifies server chains on the client side. Nil uses the
	// system pool.
	Roots *x509.CertPool

	// ClientCAs verifies client chains on the server side.
	ClientCAs *x509.CertPool

	// Timeout bounds each blocking handshake. Zero disables it.
	Timeout time.Duration

	// Provider creates the engines. It is required.
	Provider engine.Provider

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// now overrides the verification clock in tests.
	now func() time.Time
}

// DefaultContextConfig returns a configuration accepting any peer. The
// provider must still be set.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		Version:    "SSLv23",
		Ciphers:    engine.DefaultCipherList,
		VerifyMode: VerifyNone,
	}
}

// method is one entry of the method table.
type method struct {
	protocols []string
	client    bool
	server    bool
}

var methods = map[string][]string{
	"SSLv23":  nil,
	"TLS":     nil,
	"TLSv1":   {"TLSv1"},
	"TLSv1_1": {"TLSv1.1"},
	"TLSv1_2": {"TLSv1.2"},
	"TLSv1_3": {"TLSv1.3"},
}

func parseMethod(name string) (method, error) {
	if name == "" {
		name = "SSLv23"
	}
	m := method{client: true, server: true}
	switch {
	case strings.HasSuffix(name, "_client"):
		name, m.server = strings.TrimSuffix(name, "_client"), false
	case strings.HasSuffix(name, "_server"):
		name, m.client = strings.TrimSuffix(name, "_server"), false
	}
	protocols, ok := methods[name]
	if !ok {
		return method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	m.protocols = protocols
	return m, nil
}

// CipherInfo describes a cipher suite.
type CipherInfo struct {
	Name    string
	Version string
	Bits    int
	AlgBits int
}

func cipherInfo(c engine.CipherSuite) CipherInfo {
	return CipherInfo{
		Name:    c.Name,
		Version: c.Version,
		Bits:    c.Bits,
		AlgBits: c.AlgBits,
	}
}

// Context holds the engine configuration shared by sockets.
type Context struct {
	config  ContextConfig
	method  method
	ciphers []engine.CipherSuite
	log     logging.LeveledLogger
}

// NewContext validates config and creates a Context.
func NewContext(config ContextConfig) (*Context, error) {
	if config.Provider == nil {
		return nil, engine.ErrNoProvider
	}
	m, err := parseMethod(config.Version)
	if err != nil {
		return nil, err
	}
	ciphers, err := engine.MatchCipherString(config.Ciphers, config.Provider.CipherSuites())
	if err != nil {
		return nil, err
	}

	c := &Context{
		config:  config,
		method:  m,
		ciphers: ciphers,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("ssl")
	}
	return c, nil
}

// Ciphers returns the suites selected by the cipher string.
func (c *Context) Ciphers() []CipherInfo {
	out := make([]CipherInfo, len(c.ciphers))
	for i, s := range c.ciphers {
		out[i] = cipherInfo(s)
	}
	return out
}

// Protocols returns the protocol names the method enables. Nil means the
// provider's defaults.
func (c *Context) Protocols() []string {
	return c.method.protocols
}

// ForClient reports whether the method allows the client role.
func (c *Context) ForClient() bool {
	return c.method.client
}

// ForServer reports whether the method allows the server role.
func (c *Context) ForServer() bool {
	return c.method.server
}

// VerifyMode returns the configured verification mode.
func (c *Context) VerifyMode() VerifyMode {
	return c.config.VerifyMode
}

func (c *Context) allows(role engine.Role) bool {
	if role == engine.RoleClient {
		return c.method.client
	}
	return c.method.server
}

// lookupCipher finds a selected suite by its negotiated name.
func (c *Context) lookupCipher(name string) (CipherInfo, bool) {
	for _, s := range c.config.Provider.CipherSuites() {
		if s.Name == name {
			return cipherInfo(s), true
		}
	}
	return CipherInfo{}, false
}

// newEngine creates an engine for one socket. record receives the
// verification result whenever the engine consults the callback.
func (c *Context) newEngine(role engine.Role, host string, port int, record func(VerifyResult)) (engine.Engine, error) {
	if !c.allows(role) {
		return nil, ErrWrongRole
	}

	opts := verifyOptions{
		mode:   c.config.VerifyMode,
		role:   role,
		now:    c.config.now,
		record: record,
	}
	if role == engine.RoleClient {
		opts.roots = c.config.Roots
		if c.config.VerifyHostname {
			opts.hostname = host
		}
	} else {
		opts.roots = c.config.ClientCAs
	}

	return c.config.Provider.NewEngine(engine.Params{
		Role:         role,
		PeerHost:     host,
		PeerPort:     port,
		CipherSuites: engine.CipherNames(c.ciphers),
		Protocols:    c.method.protocols,
		Verify:       newVerifyFunc(opts),
	})
}
