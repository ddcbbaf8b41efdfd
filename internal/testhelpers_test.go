package internal

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// testCA holds a CA certificate and its private key for signing other certs.
type testCA struct {
	cert    *x509.Certificate
	certPEM []byte
	certDER []byte
	key     *rsa.PrivateKey
}

// testLeaf holds a leaf certificate signed by a CA, plus its private key.
type testLeaf struct {
	cert    *x509.Certificate
	certPEM []byte
	certDER []byte
	key     *rsa.PrivateKey
	keyPEM  []byte
}

func randomSerial(t *testing.T) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}
	return serial
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return key
}

// createCert signs tmpl with signerKey. A nil parent makes the certificate
// self-signed.
func createCert(t *testing.T, tmpl, parent *x509.Certificate, pub crypto.PublicKey, signerKey crypto.Signer) (*x509.Certificate, []byte) {
	t.Helper()
	if parent == nil {
		parent = tmpl
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, signerKey)
	if err != nil {
		t.Fatalf("create certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("parse certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	return cert, certDER
}

func caTemplate(t *testing.T, cn string) *x509.Certificate {
	t.Helper()
	return &x509.Certificate{
		SerialNumber:          randomSerial(t),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"TestOrg"}},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
}

// newRSACA generates a self-signed RSA root CA.
func newRSACA(t *testing.T, cn string) testCA {
	t.Helper()
	key := newRSAKey(t)
	cert, certDER := createCert(t, caTemplate(t, cn), nil, &key.PublicKey, key)
	return testCA{
		cert:    cert,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		certDER: certDER,
		key:     key,
	}
}

// newRSAIntermediate generates an RSA intermediate CA signed by parent.
func newRSAIntermediate(t *testing.T, parent testCA, cn string) testCA {
	t.Helper()
	key := newRSAKey(t)
	cert, certDER := createCert(t, caTemplate(t, cn), parent.cert, &key.PublicKey, parent.key)
	return testCA{
		cert:    cert,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		certDER: certDER,
		key:     key,
	}
}

// newRSALeaf generates an RSA leaf certificate signed by the given CA.
func newRSALeaf(t *testing.T, ca testCA, cn string, sans []string) testLeaf {
	t.Helper()
	key := newRSAKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject: pkix.Name{
			CommonName:   cn,
			Organization: []string{"TestOrg"},
			Country:      []string{"US"},
		},
		DNSNames:    sans,
		NotBefore:   time.Now().Add(-1 * time.Hour),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	cert, certDER := createCert(t, tmpl, ca.cert, &key.PublicKey, ca.key)
	return testLeaf{
		cert:    cert,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		certDER: certDER,
		key:     key,
		keyPEM:  rsaKeyPEM(key),
	}
}

// newCSRPEM returns a PEM certificate request for key.
func newCSRPEM(t *testing.T, key *rsa.PrivateKey, cn string, sans []string) []byte {
	t.Helper()
	der, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: cn},
		DNSNames: sans,
	}, key)
	if err != nil {
		t.Fatalf("create CSR: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
}

// rsaKeyPEM returns PEM-encoded PKCS#1 RSA private key bytes.
func rsaKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// ecdsaKeyPEM returns PEM-encoded ECDSA private key bytes.
func ecdsaKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate ECDSA key: %v", err)
	}
	ecBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal ECDSA key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecBytes})
}

// newPKCS12Bundle creates a PKCS#12 bundle from a leaf cert, its key and
// the issuing CA.
func newPKCS12Bundle(t *testing.T, leaf testLeaf, ca testCA, password string) []byte {
	t.Helper()
	p12, err := gopkcs12.Modern.Encode(leaf.key, leaf.cert, []*x509.Certificate{ca.cert}, password)
	if err != nil {
		t.Fatalf("create PKCS#12 bundle: %v", err)
	}
	return p12
}

// writeTestFile writes data to name under dir and returns the full path.
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// sortedNames returns the keys of files in lexical order so archives are
// built deterministically.
func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// createTestZip builds a ZIP archive with entries in lexical name order.
func createTestZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create ZIP entry %s: %v", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatalf("write ZIP entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close ZIP: %v", err)
	}
	return buf.Bytes()
}

func writeTarEntries(t *testing.T, tw *tar.Writer, files map[string][]byte) {
	t.Helper()
	for _, name := range sortedNames(files) {
		data := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644, Typeflag: tar.TypeReg}); err != nil {
			t.Fatalf("write TAR header %s: %v", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("write TAR entry %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close TAR: %v", err)
	}
}

// createTestTar builds a TAR archive with entries in lexical name order.
func createTestTar(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeTarEntries(t, tar.NewWriter(&buf), files)
	return buf.Bytes()
}

// createTestTarGz builds a gzip-compressed TAR archive.
func createTestTarGz(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	writeTarEntries(t, tar.NewWriter(gw), files)
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}
