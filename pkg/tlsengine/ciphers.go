package tlsengine

import (
	"crypto/tls"

	"github.com/backkem/ossl/pkg/engine"
)

func suite(name string, id uint16, version string, bits int, tags ...string) engine.CipherSuite {
	return engine.CipherSuite{
		Name:    name,
		ID:      id,
		Version: version,
		Bits:    bits,
		AlgBits: bits,
		Tags:    tags,
	}
}

// cipherTable lists the suites crypto/tls implements under their OpenSSL
// names, in preference order.
var cipherTable = []engine.CipherSuite{
	suite("TLS_AES_128_GCM_SHA256", tls.TLS_AES_128_GCM_SHA256, "TLSv1.3", 128, "TLSv1.3", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("TLS_AES_256_GCM_SHA384", tls.TLS_AES_256_GCM_SHA384, "TLSv1.3", 256, "TLSv1.3", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("TLS_CHACHA20_POLY1305_SHA256", tls.TLS_CHACHA20_POLY1305_SHA256, "TLSv1.3", 256, "TLSv1.3", "CHACHA20", "AEAD", "HIGH"),

	suite("ECDHE-ECDSA-AES128-GCM-SHA256", tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, "TLSv1.2", 128, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("ECDHE-RSA-AES128-GCM-SHA256", tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, "TLSv1.2", 128, "ECDHE", "kECDHE", "aRSA", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("ECDHE-ECDSA-AES256-GCM-SHA384", tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384, "TLSv1.2", 256, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("ECDHE-RSA-AES256-GCM-SHA384", tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, "TLSv1.2", 256, "ECDHE", "kECDHE", "aRSA", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("ECDHE-ECDSA-CHACHA20-POLY1305", tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256, "TLSv1.2", 256, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "CHACHA20", "AEAD", "HIGH"),
	suite("ECDHE-RSA-CHACHA20-POLY1305", tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256, "TLSv1.2", 256, "ECDHE", "kECDHE", "aRSA", "CHACHA20", "AEAD", "HIGH"),
	suite("ECDHE-ECDSA-AES128-SHA", tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA, "TLSv1", 128, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "AES", "SHA1", "SHA", "HIGH"),
	suite("ECDHE-RSA-AES128-SHA", tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA, "TLSv1", 128, "ECDHE", "kECDHE", "aRSA", "AES", "SHA1", "SHA", "HIGH"),
	suite("ECDHE-ECDSA-AES256-SHA", tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA, "TLSv1", 256, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "AES", "SHA1", "SHA", "HIGH"),
	suite("ECDHE-RSA-AES256-SHA", tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA, "TLSv1", 256, "ECDHE", "kECDHE", "aRSA", "AES", "SHA1", "SHA", "HIGH"),
	suite("ECDHE-ECDSA-AES128-SHA256", tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256, "TLSv1.2", 128, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "AES", "SHA256", "HIGH"),
	suite("ECDHE-RSA-AES128-SHA256", tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256, "TLSv1.2", 128, "ECDHE", "kECDHE", "aRSA", "AES", "SHA256", "HIGH"),
	suite("AES128-GCM-SHA256", tls.TLS_RSA_WITH_AES_128_GCM_SHA256, "TLSv1.2", 128, "RSA", "kRSA", "aRSA", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("AES256-GCM-SHA384", tls.TLS_RSA_WITH_AES_256_GCM_SHA384, "TLSv1.2", 256, "RSA", "kRSA", "aRSA", "AESGCM", "AES", "AEAD", "HIGH"),
	suite("AES128-SHA", tls.TLS_RSA_WITH_AES_128_CBC_SHA, "TLSv1", 128, "RSA", "kRSA", "aRSA", "AES", "SHA1", "SHA", "HIGH"),
	suite("AES256-SHA", tls.TLS_RSA_WITH_AES_256_CBC_SHA, "TLSv1", 256, "RSA", "kRSA", "aRSA", "AES", "SHA1", "SHA", "HIGH"),
	suite("AES128-SHA256", tls.TLS_RSA_WITH_AES_128_CBC_SHA256, "TLSv1.2", 128, "RSA", "kRSA", "aRSA", "AES", "SHA256", "HIGH"),
	suite("ECDHE-RSA-DES-CBC3-SHA", tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA, "TLSv1", 112, "ECDHE", "kECDHE", "aRSA", "3DES", "SHA1", "SHA", "MEDIUM"),
	suite("DES-CBC3-SHA", tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA, "TLSv1", 112, "RSA", "kRSA", "aRSA", "3DES", "SHA1", "SHA", "MEDIUM"),
	suite("ECDHE-ECDSA-RC4-SHA", tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA, "TLSv1", 128, "ECDHE", "kECDHE", "aECDSA", "ECDSA", "RC4", "SHA1", "SHA", "MEDIUM"),
	suite("ECDHE-RSA-RC4-SHA", tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA, "TLSv1", 128, "ECDHE", "kECDHE", "aRSA", "RC4", "SHA1", "SHA", "MEDIUM"),
	suite("RC4-SHA", tls.TLS_RSA_WITH_RC4_128_SHA, "TLSv1", 128, "RSA", "kRSA", "aRSA", "RC4", "SHA1", "SHA", "MEDIUM"),
}

// CipherSuites returns the suites crypto/tls can negotiate.
func CipherSuites() []engine.CipherSuite {
	return append([]engine.CipherSuite(nil), cipherTable...)
}

func lookupSuite(name string) (engine.CipherSuite, bool) {
	for _, c := range cipherTable {
		if c.Name == name {
			return c, true
		}
	}
	return engine.CipherSuite{}, false
}

func lookupSuiteID(id uint16) (engine.CipherSuite, bool) {
	for _, c := range cipherTable {
		if c.ID == id {
			return c, true
		}
	}
	return engine.CipherSuite{}, false
}

// suiteIDs maps names to crypto/tls ids for the TLS 1.2 and older suites.
// TLS 1.3 suites are not configurable in crypto/tls and are skipped.
func suiteIDs(names []string) []uint16 {
	var ids []uint16
	for _, name := range names {
		c, ok := lookupSuite(name)
		if !ok || c.Version == "TLSv1.3" {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}

// suiteName returns the OpenSSL name of a negotiated suite, falling back
// to the crypto/tls name.
func suiteName(id uint16) string {
	if c, ok := lookupSuiteID(id); ok {
		return c.Name
	}
	return tls.CipherSuiteName(id)
}
