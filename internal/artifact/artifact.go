// Package artifact classifies raw file bytes into the cryptographic objects
// that take part in chain building: RSA private keys, certificate requests,
// and certificates.
package artifact

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// Kind identifies what an artifact holds.
type Kind int

const (
	Unrecognized Kind = iota
	PrivateKey
	Request
	Certificate
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case PrivateKey:
		return "private key"
	case Request:
		return "request"
	case Certificate:
		return "certificate"
	default:
		return "unrecognized"
	}
}

// MarshalText lets Kind render by name in JSON and YAML reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Artifact is one classified object. Exactly one of Key, Request or
// Certificate is set, matching Kind.
type Artifact struct {
	Path        string
	Kind        Kind
	Key         *rsa.PrivateKey
	Request     *x509.CertificateRequest
	Certificate *x509.Certificate
}

// ClassifyInput holds parameters for Classify.
type ClassifyInput struct {
	Data      []byte
	Path      string
	Passwords []string
}

// Count tallies artifacts by kind.
func Count(artifacts []Artifact) map[Kind]int {
	counts := make(map[Kind]int)
	for _, a := range artifacts {
		counts[a.Kind]++
	}
	return counts
}

// entryPath returns the virtual path of the i-th object found in a container.
func entryPath(path string, i int) string {
	return fmt.Sprintf("%s:%d", path, i)
}
