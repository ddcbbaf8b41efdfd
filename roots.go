package sslchains

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"sync"

	"github.com/breml/rootcerts/embedded"
)

var (
	mozillaOnce  sync.Once
	mozillaRoots []*x509.Certificate
)

// MozillaRoots returns the Mozilla CA bundle embedded in the binary, parsed
// once and shared. Entries the x509 parser rejects are skipped. Callers must
// not modify the returned certificates.
func MozillaRoots() ([]*x509.Certificate, error) {
	mozillaOnce.Do(func() {
		rest := []byte(embedded.MozillaCACertificatesPEM())
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				continue
			}
			mozillaRoots = append(mozillaRoots, cert)
		}
	})
	if len(mozillaRoots) == 0 {
		return nil, errors.New("parsing embedded Mozilla root certificates")
	}
	return append([]*x509.Certificate(nil), mozillaRoots...), nil
}
