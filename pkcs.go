package sslchains

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// PKCS12Contents holds everything recovered from a PKCS#12/PFX bundle.
type PKCS12Contents struct {
	Key  crypto.PrivateKey
	Leaf *x509.Certificate
	CAs  []*x509.Certificate
}

// DecodePKCS12 decodes a PKCS#12/PFX bundle, trying each password in order
// until one opens it. Returns an error if no password works.
func DecodePKCS12(pfxData []byte, passwords []string) (*PKCS12Contents, error) {
	var lastErr error
	for _, password := range passwords {
		key, leaf, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
		if err != nil {
			lastErr = err
			continue
		}
		return &PKCS12Contents{Key: key, Leaf: leaf, CAs: caCerts}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no passwords to try")
	}
	return nil, fmt.Errorf("decoding PKCS#12: %w", lastErr)
}

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns the certificates it contains.
// Returns an error if decoding fails or the bundle contains no certificates.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}
