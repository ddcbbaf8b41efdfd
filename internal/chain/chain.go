// Package chain groups classified artifacts into chains: one per private
// key, with the first matching certificate request, every matching
// certificate, and each certificate's signing lineage.
package chain

import (
	"crypto/rsa"
	"crypto/x509"
)

// KeyFile is the private key a chain is built around.
type KeyFile struct {
	Path string
	Key  *rsa.PrivateKey
}

// RequestFile is a certificate request whose public key matches the chain key.
type RequestFile struct {
	Path    string
	Request *x509.CertificateRequest
}

// CertificateRecord is a certificate together with its resolved issuer.
// Issuer is an owned copy: records are never shared between chains, though
// the parsed *x509.Certificate they point at is shared read-only.
type CertificateRecord struct {
	Path        string
	Certificate *x509.Certificate
	Issuer      *CertificateRecord
	SelfSigned  bool
}

// Lineage returns the issuers of r from nearest to root. It is empty when r
// is self-signed or its issuer is unknown.
func (r *CertificateRecord) Lineage() []*CertificateRecord {
	var lineage []*CertificateRecord
	for issuer := r.Issuer; issuer != nil; issuer = issuer.Issuer {
		lineage = append(lineage, issuer)
	}
	return lineage
}

// Root returns the last record of the lineage, which is r itself when it
// has no issuer.
func (r *CertificateRecord) Root() *CertificateRecord {
	root := r
	for root.Issuer != nil {
		root = root.Issuer
	}
	return root
}

// Chain is everything found for one private key. Key is set at creation and
// never changes. Request is the first matching request and is never
// replaced. Certificates holds every matching certificate in discovery order.
type Chain struct {
	Key          *KeyFile
	Request      *RequestFile
	Certificates []*CertificateRecord
}
