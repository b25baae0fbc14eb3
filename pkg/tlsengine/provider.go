package tlsengine

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/backkem/ossl/pkg/engine"
	"github.com/pion/logging"
)

// Config configures a Provider.
type Config struct {
	// Certificates are offered to the peer. Servers need at least one.
	Certificates []tls.Certificate

	// ClientCAs is advertised to clients when a client certificate is
	// requested. Verification itself runs in the engine's verify task.
	ClientCAs *x509.CertPool

	// NextProtos lists ALPN protocols in preference order.
	NextProtos []string

	// SessionTicketsDisabled turns off session resumption.
	SessionTicketsDisabled bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Provider creates crypto/tls backed engines.
type Provider struct {
	config Config
	local  []*x509.Certificate
	log    logging.LeveledLogger
}

var _ engine.Provider = (*Provider)(nil)

// NewProvider creates a Provider. It fails when a configured certificate
// cannot be parsed.
func NewProvider(config Config) (*Provider, error) {
	p := &Provider{config: config}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("tlsengine")
	}
	if len(config.Certificates) > 0 {
		for _, der := range config.Certificates[0].Certificate {
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("tlsengine: parse local certificate: %w", err)
			}
			p.local = append(p.local, cert)
		}
	}
	return p, nil
}

// CipherSuites implements engine.Provider.
func (p *Provider) CipherSuites() []engine.CipherSuite {
	return CipherSuites()
}

// NewEngine implements engine.Provider.
func (p *Provider) NewEngine(params engine.Params) (engine.Engine, error) {
	minVersion, maxVersion, err := versionRange(params.Protocols)
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		Certificates:                p.config.Certificates,
		ClientCAs:                   p.config.ClientCAs,
		NextProtos:                  p.config.NextProtos,
		SessionTicketsDisabled:      p.config.SessionTicketsDisabled,
		ServerName:                  params.PeerHost,
		MinVersion:                  minVersion,
		MaxVersion:                  maxVersion,
		DynamicRecordSizingDisabled: true,
	}

	if len(params.CipherSuites) > 0 {
		config.CipherSuites = suiteIDs(params.CipherSuites)
		if !hasTLS13Suite(params.CipherSuites) && (maxVersion == 0 || maxVersion > tls.VersionTLS12) {
			// crypto/tls always enables its TLS 1.3 suites, so a list
			// without any caps the version instead.
			config.MaxVersion = tls.VersionTLS12
		}
		if len(config.CipherSuites) == 0 && config.MaxVersion != 0 && config.MaxVersion < tls.VersionTLS13 {
			return nil, fmt.Errorf("%w: %v", engine.ErrNoCipherMatch, params.CipherSuites)
		}
	}

	if p.log != nil {
		p.log.Tracef("new %s engine host=%q port=%d", params.Role, params.PeerHost, params.PeerPort)
	}
	return newEngine(config, params, p.local, p.log), nil
}

func hasTLS13Suite(names []string) bool {
	for _, name := range names {
		if c, ok := lookupSuite(name); ok && c.Version == "TLSv1.3" {
			return true
		}
	}
	return false
}
