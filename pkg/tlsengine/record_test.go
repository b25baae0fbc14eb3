package tlsengine

import (
	"crypto/tls"
	"errors"
	"testing"
)

func TestRecordSize(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		size    int
		ok      bool
		wantErr error
	}{
		{"empty", nil, 0, false, nil},
		{"partial header", []byte{22, 3}, 0, false, nil},
		{"header only", []byte{22, 3, 3, 0, 2}, 0, false, nil},
		{"complete", []byte{22, 3, 3, 0, 2, 0xaa, 0xbb}, 7, true, nil},
		{"complete with trailing", []byte{23, 3, 3, 0, 1, 0xaa, 23, 3}, 6, true, nil},
		{"bad type", []byte{0x47, 0x45, 0x54, 0x20, 0x2f}, 0, false, ErrNotTLS},
		{"bad version", []byte{22, 2, 0, 0, 1, 0}, 0, false, ErrNotTLS},
		{"overflow", []byte{23, 3, 3, 0xff, 0xff}, 0, false, ErrRecordOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, ok, err := recordSize(tt.in)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("recordSize() error = %v, want %v", err, tt.wantErr)
			}
			if size != tt.size || ok != tt.ok {
				t.Errorf("recordSize() = %d, %v; want %d, %v", size, ok, tt.size, tt.ok)
			}
		})
	}
}

func TestProtocols(t *testing.T) {
	v, err := ProtocolVersion("TLSv1.2")
	if err != nil || v != tls.VersionTLS12 {
		t.Errorf("ProtocolVersion(TLSv1.2) = %#x, %v", v, err)
	}
	if _, err := ProtocolVersion("SSLv3"); !errors.Is(err, ErrUnknownProtocol) {
		t.Errorf("ProtocolVersion(SSLv3) error = %v", err)
	}
	if got := ProtocolName(tls.VersionTLS13); got != "TLSv1.3" {
		t.Errorf("ProtocolName() = %q", got)
	}
	if got := ProtocolName(0x0200); got != "unknown(0x0200)" {
		t.Errorf("ProtocolName(0x0200) = %q", got)
	}

	lo, hi, err := versionRange([]string{"TLSv1.3", "TLSv1.1"})
	if err != nil || lo != tls.VersionTLS11 || hi != tls.VersionTLS13 {
		t.Errorf("versionRange() = %#x, %#x, %v", lo, hi, err)
	}
	if lo, hi, err := versionRange(nil); lo != 0 || hi != 0 || err != nil {
		t.Errorf("versionRange(nil) = %#x, %#x, %v", lo, hi, err)
	}
}

func TestCipherTable(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range CipherSuites() {
		if seen[c.Name] {
			t.Errorf("duplicate suite %s", c.Name)
		}
		seen[c.Name] = true
		if got := suiteName(c.ID); got != c.Name {
			t.Errorf("suiteName(%#x) = %q, want %q", c.ID, got, c.Name)
		}
	}

	ids := suiteIDs([]string{"TLS_AES_128_GCM_SHA256", "ECDHE-RSA-AES128-GCM-SHA256", "BOGUS"})
	if len(ids) != 1 || ids[0] != tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256 {
		t.Errorf("suiteIDs() = %v", ids)
	}
	if !hasTLS13Suite([]string{"AES128-SHA", "TLS_AES_256_GCM_SHA384"}) || hasTLS13Suite([]string{"AES128-SHA"}) {
		t.Error("hasTLS13Suite mismatch")
	}
}
