package ssl

import (
	"crypto/x509"
	"errors"
	"testing"
	"time"

	"github.com/backkem/ossl/pkg/credentials"
	"github.com/backkem/ossl/pkg/engine"
)

type verifyFixture struct {
	ca    *credentials.Authority
	chain []*x509.Certificate
}

func newVerifyFixture(t *testing.T, leaf credentials.CertificateConfig) verifyFixture {
	t.Helper()
	caConfig := credentials.DefaultCertificateConfig()
	caConfig.CommonName = "verify CA"
	ca, err := credentials.NewAuthority(caConfig)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}
	pair, err := ca.Issue(leaf)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return verifyFixture{ca: ca, chain: []*x509.Certificate{pair.Leaf, ca.Certificate}}
}

func runVerify(o verifyOptions, chain []*x509.Certificate) (VerifyResult, error) {
	result := VerifyNotEvaluated
	o.record = func(r VerifyResult) { result = r }
	err := newVerifyFunc(o)(chain)
	return result, err
}

func TestVerify_Trusted(t *testing.T) {
	f := newVerifyFixture(t, credentials.DefaultCertificateConfig())

	result, err := runVerify(verifyOptions{
		mode:     VerifyPeer,
		role:     engine.RoleClient,
		hostname: "localhost",
		roots:    f.ca.Pool(),
	}, f.chain)
	if err != nil || result != VerifyOK {
		t.Fatalf("verify = %s, %v; want ok", result, err)
	}
}

func TestVerify_Classification(t *testing.T) {
	f := newVerifyFixture(t, credentials.DefaultCertificateConfig())
	self, err := credentials.SelfSigned(credentials.DefaultCertificateConfig())
	if err != nil {
		t.Fatalf("SelfSigned() error = %v", err)
	}
	otherConfig := credentials.DefaultCertificateConfig()
	otherConfig.CommonName = "unrelated CA"
	other, err := credentials.NewAuthority(otherConfig)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}

	tests := []struct {
		name  string
		opts  verifyOptions
		chain []*x509.Certificate
		want  VerifyResult
	}{
		{
			name:  "self signed leaf",
			opts:  verifyOptions{mode: VerifyPeer, role: engine.RoleClient, roots: other.Pool()},
			chain: []*x509.Certificate{self.Leaf},
			want:  VerifySelfSignedCert,
		},
		{
			name:  "untrusted root in chain",
			opts:  verifyOptions{mode: VerifyPeer, role: engine.RoleClient, roots: other.Pool()},
			chain: f.chain,
			want:  VerifySelfSignedCertInChain,
		},
		{
			name:  "missing issuer",
			opts:  verifyOptions{mode: VerifyPeer, role: engine.RoleClient, roots: other.Pool()},
			chain: f.chain[:1],
			want:  VerifyUnableToGetIssuerLocal,
		},
		{
			name:  "hostname mismatch",
			opts:  verifyOptions{mode: VerifyPeer, role: engine.RoleClient, roots: f.ca.Pool(), hostname: "example.com"},
			chain: f.chain,
			want:  VerifyHostnameMismatch,
		},
		{
			name: "expired",
			opts: verifyOptions{
				mode: VerifyPeer, role: engine.RoleClient, roots: f.ca.Pool(),
				now: func() time.Time { return time.Now().Add(48 * time.Hour) },
			},
			chain: f.chain,
			want:  VerifyCertHasExpired,
		},
		{
			name: "not yet valid",
			opts: verifyOptions{
				mode: VerifyPeer, role: engine.RoleClient, roots: f.ca.Pool(),
				now: func() time.Time { return time.Now().Add(-48 * time.Hour) },
			},
			chain: f.chain,
			want:  VerifyCertNotYetValid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runVerify(tt.opts, tt.chain)
			if result != tt.want {
				t.Errorf("result = %s, want %s", result, tt.want)
			}
			var verr *VerifyError
			if !errors.As(err, &verr) || verr.Result != tt.want {
				t.Errorf("error = %v, want *VerifyError with %s", err, tt.want)
			}
		})
	}
}

func TestVerify_InvalidPurpose(t *testing.T) {
	leaf := credentials.DefaultCertificateConfig()
	leaf.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	f := newVerifyFixture(t, leaf)

	// A server-only certificate presented by a client.
	result, err := runVerify(verifyOptions{mode: VerifyPeer, role: engine.RoleServer, roots: f.ca.Pool()}, f.chain)
	if result != VerifyInvalidPurpose || err == nil {
		t.Fatalf("verify = %s, %v; want %s", result, err, VerifyInvalidPurpose)
	}
}

func TestVerify_EmptyChain(t *testing.T) {
	tests := []struct {
		mode    VerifyMode
		role    engine.Role
		want    VerifyResult
		wantErr bool
	}{
		{VerifyNone, engine.RoleClient, VerifyOK, false},
		{VerifyPeer, engine.RoleClient, VerifyCertRejected, true},
		{VerifyNone, engine.RoleServer, VerifyOK, false},
		{VerifyPeer, engine.RoleServer, VerifyOK, false},
		{VerifyPeer | VerifyFailIfNoPeerCert, engine.RoleServer, VerifyCertRejected, true},
	}
	for _, tt := range tests {
		result, err := runVerify(verifyOptions{mode: tt.mode, role: tt.role}, nil)
		if result != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("%s %s: verify = %s, %v", tt.role, tt.mode, result, err)
		}
		if tt.wantErr && !errors.Is(err, ErrPeerCertificateMissing) {
			t.Errorf("%s %s: error = %v, want ErrPeerCertificateMissing", tt.role, tt.mode, err)
		}
	}
}

func TestVerify_NoneAcceptsAnything(t *testing.T) {
	self, err := credentials.SelfSigned(credentials.DefaultCertificateConfig())
	if err != nil {
		t.Fatalf("SelfSigned() error = %v", err)
	}
	result, err := runVerify(verifyOptions{mode: VerifyNone, role: engine.RoleClient}, []*x509.Certificate{self.Leaf})
	if err != nil || result != VerifyOK {
		t.Fatalf("verify = %s, %v; want ok", result, err)
	}
}

func TestVerifyResult_String(t *testing.T) {
	if got := VerifyHostnameMismatch.String(); got == "" || got == "unknown" {
		t.Errorf("VerifyHostnameMismatch.String() = %q", got)
	}
	if got := VerifyResult(12345).String(); got == "" {
		t.Error("unknown result has no string")
	}
}
