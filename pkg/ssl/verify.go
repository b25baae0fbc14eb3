package ssl

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/backkem/ossl/pkg/engine"
)

// VerifyResult is an OpenSSL-style certificate verification code.
type VerifyResult int

// Verification codes. Values match OpenSSL's X509_V_* constants.
const (
	VerifyNotEvaluated           VerifyResult = -1
	VerifyOK                     VerifyResult = 0
	VerifyCertNotYetValid        VerifyResult = 9
	VerifyCertHasExpired         VerifyResult = 10
	VerifySelfSignedCert         VerifyResult = 18
	VerifySelfSignedCertInChain  VerifyResult = 19
	VerifyUnableToGetIssuerLocal VerifyResult = 20
	VerifyInvalidPurpose         VerifyResult = 26
	VerifyCertRejected           VerifyResult = 28
	VerifyHostnameMismatch       VerifyResult = 62
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyNotEvaluated:
		return "not evaluated"
	case VerifyOK:
		return "ok"
	case VerifyCertNotYetValid:
		return "certificate is not yet valid"
	case VerifyCertHasExpired:
		return "certificate has expired"
	case VerifySelfSignedCert:
		return "self signed certificate"
	case VerifySelfSignedCertInChain:
		return "self signed certificate in certificate chain"
	case VerifyUnableToGetIssuerLocal:
		return "unable to get local issuer certificate"
	case VerifyInvalidPurpose:
		return "unsupported certificate purpose"
	case VerifyCertRejected:
		return "certificate rejected"
	case VerifyHostnameMismatch:
		return "hostname mismatch"
	default:
		return fmt.Sprintf("verify error %d", int(r))
	}
}

// VerifyError is returned to the engine when the peer chain is rejected.
type VerifyError struct {
	Result VerifyResult
	Err    error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("certificate verify failed (%s): %v", e.Result, e.Err)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// verifyOptions carries what a verification callback needs from the
// context and the socket.
type verifyOptions struct {
	mode     VerifyMode
	role     engine.Role
	hostname string
	roots    *x509.CertPool
	now      func() time.Time
	record   func(VerifyResult)
}

// newVerifyFunc builds the callback engines consult with the peer chain.
func newVerifyFunc(o verifyOptions) engine.VerifyFunc {
	return func(chain []*x509.Certificate) error {
		if len(chain) == 0 {
			if o.role == engine.RoleServer && o.mode.Has(VerifyPeer|VerifyFailIfNoPeerCert) {
				o.record(VerifyCertRejected)
				return ErrPeerCertificateMissing
			}
			if o.role == engine.RoleClient && o.mode.Has(VerifyPeer) {
				o.record(VerifyCertRejected)
				return ErrPeerCertificateMissing
			}
			o.record(VerifyOK)
			return nil
		}
		if !o.mode.Has(VerifyPeer) {
			o.record(VerifyOK)
			return nil
		}

		opts := x509.VerifyOptions{
			Roots:         o.roots,
			Intermediates: x509.NewCertPool(),
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		}
		if o.now != nil {
			opts.CurrentTime = o.now()
		}
		if o.role == engine.RoleServer {
			opts.KeyUsages = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
		} else {
			opts.DNSName = o.hostname
		}
		for _, c := range chain[1:] {
			opts.Intermediates.AddCert(c)
		}

		_, err := chain[0].Verify(opts)
		result := classifyVerifyError(err, chain, opts.CurrentTime)
		o.record(result)
		if err != nil {
			return &VerifyError{Result: result, Err: err}
		}
		return nil
	}
}

// classifyVerifyError maps a crypto/x509 verification error to the
// matching OpenSSL code.
func classifyVerifyError(err error, chain []*x509.Certificate, now time.Time) VerifyResult {
	if err == nil {
		return VerifyOK
	}

	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		switch invalid.Reason {
		case x509.Expired:
			if now.IsZero() {
				now = time.Now()
			}
			if invalid.Cert != nil && now.Before(invalid.Cert.NotBefore) {
				return VerifyCertNotYetValid
			}
			return VerifyCertHasExpired
		case x509.IncompatibleUsage:
			return VerifyInvalidPurpose
		default:
			return VerifyCertRejected
		}
	}

	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return VerifyHostnameMismatch
	}

	var unknown x509.UnknownAuthorityError
	if errors.As(err, &unknown) {
		if len(chain) == 1 && isSelfSigned(chain[0]) {
			return VerifySelfSignedCert
		}
		for _, c := range chain[1:] {
			if isSelfSigned(c) {
				return VerifySelfSignedCertInChain
			}
		}
		return VerifyUnableToGetIssuerLocal
	}

	return VerifyCertRejected
}

func isSelfSigned(c *x509.Certificate) bool {
	if !bytes.Equal(c.RawIssuer, c.RawSubject) {
		return false
	}
	return c.CheckSignature(c.SignatureAlgorithm, c.RawTBSCertificate, c.Signature) == nil
}
