// Package credentials generates and loads the X.509 material used by TLS
// endpoints: a small certificate authority for tests and tooling, and PEM
// key-pair loading for deployments.
package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// maxSerialBits bounds generated serial numbers to 20 octets (RFC 5280).
const maxSerialBits = 159

// CertificateConfig describes a certificate to generate.
type CertificateConfig struct {
	// CommonName is the subject CN.
	CommonName string

	// Organization is the subject O.
	Organization string

	// DNSNames and IPAddresses are the subject alternative names.
	DNSNames    []string
	IPAddresses []net.IP

	// NotBefore and NotAfter bound validity. Zero values default to one
	// hour ago and Lifetime from now.
	NotBefore time.Time
	NotAfter  time.Time

	// Lifetime is used when NotAfter is zero.
	Lifetime time.Duration

	// KeyType selects the key algorithm.
	KeyType KeyType

	// IsCA marks the certificate as an authority.
	IsCA bool

	// ExtKeyUsage defaults to server and client authentication for leaves.
	ExtKeyUsage []x509.ExtKeyUsage
}

// DefaultCertificateConfig returns a leaf configuration for localhost.
func DefaultCertificateConfig() CertificateConfig {
	return CertificateConfig{
		CommonName:   "localhost",
		Organization: "ossl",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		Lifetime:     24 * time.Hour,
		KeyType:      KeyECDSAP256,
	}
}

// Authority is a certificate authority able to issue leaves.
type Authority struct {
	Certificate *x509.Certificate
	Key         crypto.Signer
}

// NewAuthority creates a self-signed CA.
func NewAuthority(config CertificateConfig) (*Authority, error) {
	config.IsCA = true
	cert, key, err := create(config, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Authority{Certificate: cert, Key: key}, nil
}

// Issue creates a leaf signed by the authority. The returned chain is
// leaf first, followed by the authority certificate.
func (a *Authority) Issue(config CertificateConfig) (tls.Certificate, error) {
	if !a.Certificate.IsCA {
		return tls.Certificate{}, ErrNotAuthority
	}
	cert, key, err := create(config, a.Certificate, a.Key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw, a.Certificate.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

// Pool returns a pool trusting only this authority.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Certificate)
	return pool
}

// SelfSigned creates a self-signed leaf.
func SelfSigned(config CertificateConfig) (tls.Certificate, error) {
	cert, key, err := create(config, nil, nil)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

func create(config CertificateConfig, parent *x509.Certificate, parentKey crypto.Signer) (*x509.Certificate, crypto.Signer, error) {
	key, err := generateKey(config.KeyType)
	if err != nil {
		return nil, nil, err
	}

	notBefore := config.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Hour)
	}
	notAfter := config.NotAfter
	if notAfter.IsZero() {
		lifetime := config.Lifetime
		if lifetime == 0 {
			lifetime = 24 * time.Hour
		}
		notAfter = time.Now().Add(lifetime)
	}
	if !notAfter.After(notBefore) {
		return nil, nil, ErrInvalidValidity
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), maxSerialBits))
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: config.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		DNSNames:              config.DNSNames,
		IPAddresses:           config.IPAddresses,
		BasicConstraintsValid: true,
		IsCA:                  config.IsCA,
	}
	if config.Organization != "" {
		template.Subject.Organization = []string{config.Organization}
	}

	if config.IsCA {
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
	} else {
		template.KeyUsage = x509.KeyUsageDigitalSignature
		if config.KeyType == KeyRSA2048 {
			template.KeyUsage |= x509.KeyUsageKeyEncipherment
		}
		template.ExtKeyUsage = config.ExtKeyUsage
		if len(template.ExtKeyUsage) == 0 {
			template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
		}
	}

	if parent == nil {
		parent, parentKey = template, key
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, key.Public(), parentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: parse certificate: %w", err)
	}
	return cert, key, nil
}

func generateKey(t KeyType) (crypto.Signer, error) {
	switch t {
	case KeyECDSAP256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyRSA2048:
		return rsa.GenerateKey(rand.Reader, 2048)
	case KeyEd25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, err
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, t)
	}
}
