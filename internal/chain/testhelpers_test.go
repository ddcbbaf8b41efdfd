package chain

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/sensiblebit/sslchains/internal/artifact"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func certTemplate(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatal(err)
	}
	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
}

// issue signs a certificate for pub with signer. parent supplies the issuer
// name and may be a bare template; nil makes the certificate self-signed.
func issue(t *testing.T, cn string, pub *rsa.PublicKey, parent *x509.Certificate, signer *rsa.PrivateKey) *x509.Certificate {
	t.Helper()
	template := certTemplate(t, cn)
	if parent == nil {
		parent = template
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert
}

func newRequest(t *testing.T, key *rsa.PrivateKey, cn string) *x509.CertificateRequest {
	t.Helper()
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: cn},
	}, key)
	if err != nil {
		t.Fatal(err)
	}
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		t.Fatal(err)
	}
	return csr
}

// testPKI is a root → intermediate → leaf hierarchy with the leaf key.
type testPKI struct {
	leafKey *rsa.PrivateKey
	root    *x509.Certificate
	inter   *x509.Certificate
	leaf    *x509.Certificate
}

func newTestPKI(t *testing.T) testPKI {
	t.Helper()
	rootKey := newRSAKey(t)
	interKey := newRSAKey(t)
	leafKey := newRSAKey(t)
	root := issue(t, "Test Root", &rootKey.PublicKey, nil, rootKey)
	inter := issue(t, "Test Intermediate", &interKey.PublicKey, root, rootKey)
	leaf := issue(t, "a.example.com", &leafKey.PublicKey, inter, interKey)
	return testPKI{leafKey: leafKey, root: root, inter: inter, leaf: leaf}
}

func keyArtifact(path string, key *rsa.PrivateKey) artifact.Artifact {
	return artifact.Artifact{Path: path, Kind: artifact.PrivateKey, Key: key}
}

func requestArtifact(path string, csr *x509.CertificateRequest) artifact.Artifact {
	return artifact.Artifact{Path: path, Kind: artifact.Request, Request: csr}
}

func certArtifact(path string, cert *x509.Certificate) artifact.Artifact {
	return artifact.Artifact{Path: path, Kind: artifact.Certificate, Certificate: cert}
}

// lineagePaths returns the paths of r's issuers from nearest to root.
func lineagePaths(r *CertificateRecord) []string {
	var paths []string
	for _, issuer := range r.Lineage() {
		paths = append(paths, issuer.Path)
	}
	return paths
}
