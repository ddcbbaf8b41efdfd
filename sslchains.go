// Package sslchains provides the parsing and comparison primitives used to
// pair private keys with certificate requests and certificates, and to work
// out which certificate signed which.
package sslchains

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/ssh"
)

// ErrNotRSA is returned when a key is not an RSA key. Only RSA keys take part
// in modulus matching.
var ErrNotRSA = errors.New("not an RSA key")

// normalizeKey converts *ed25519.PrivateKey (returned by ssh.ParseRawPrivateKey)
// to the value form so type switches only need one case.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if ptr, ok := key.(*ed25519.PrivateKey); ok {
		return *ptr
	}
	return key
}

// ParsePEMPrivateKey parses a PEM-encoded private key (PKCS#1, PKCS#8, EC or
// OpenSSH). For "PRIVATE KEY" blocks it tries PKCS#8 first, then falls back to
// PKCS#1 and EC parsers to handle mislabeled keys.
func ParsePEMPrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		return nil, errors.New("parsing PRIVATE KEY block with any known format")
	case "OPENSSH PRIVATE KEY":
		key, err := ssh.ParseRawPrivateKey(pemData)
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// DefaultPasswords returns the passwords tried by default when decrypting
// password-protected keys and containers. Returns a fresh copy each call.
func DefaultPasswords() []string {
	return []string{"", "password", "changeit", "keypassword"}
}

// DeduplicatePasswords merges extra passwords with the defaults and removes
// duplicates while preserving order. Defaults come first.
func DeduplicatePasswords(extra []string) []string {
	all := append(DefaultPasswords(), extra...)
	seen := make(map[string]bool, len(all))
	result := make([]string, 0, len(all))
	for _, p := range all {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

// ParsePEMPrivateKeyWithPasswords tries to parse a PEM-encoded private key.
// It first attempts unencrypted parsing via ParsePEMPrivateKey. If that fails
// and the block is encrypted (legacy RFC 1423 or OpenSSH), each password is
// tried in order.
func ParsePEMPrivateKeyWithPasswords(pemData []byte, passwords []string) (crypto.PrivateKey, error) {
	if key, err := ParsePEMPrivateKey(pemData); err == nil {
		return key, nil
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	if block.Type == "OPENSSH PRIVATE KEY" {
		for _, password := range passwords {
			if password == "" {
				continue
			}
			key, err := ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(password))
			if err == nil {
				return normalizeKey(key), nil
			}
		}
		return nil, errors.New("parsing OpenSSH private key with any provided password")
	}

	//nolint:staticcheck // legacy encrypted PEM is still common in old key stores
	if !x509.IsEncryptedPEMBlock(block) {
		_, err := ParsePEMPrivateKey(pemData)
		return nil, err
	}

	for _, password := range passwords {
		//nolint:staticcheck // legacy encrypted PEM is still common in old key stores
		decrypted, err := x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			continue
		}
		clearPEM := pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: decrypted})
		if key, err := ParsePEMPrivateKey(clearPEM); err == nil {
			return key, nil
		}
	}

	return nil, errors.New("decrypting private key with any provided password")
}

// IsRequestBlock reports whether a PEM block type holds a certificate request.
func IsRequestBlock(blockType string) bool {
	return blockType == "CERTIFICATE REQUEST" || blockType == "NEW CERTIFICATE REQUEST"
}

// IsPEM returns true if the data appears to contain PEM-encoded content.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// GetPublicKey extracts the public key from a private key via crypto.Signer.
func GetPublicKey(priv crypto.PrivateKey) (crypto.PublicKey, error) {
	if signer, ok := priv.(crypto.Signer); ok {
		return signer.Public(), nil
	}
	return nil, fmt.Errorf("unsupported private key type: %T", priv)
}

// PublicModulus returns the RSA modulus of a public key, a private key, a
// certificate request, or a certificate. Anything that is not RSA yields
// ErrNotRSA.
func PublicModulus(v any) (*big.Int, error) {
	switch k := v.(type) {
	case *rsa.PublicKey:
		if k == nil || k.N == nil {
			return nil, errors.New("RSA public key has no modulus")
		}
		return k.N, nil
	case *rsa.PrivateKey:
		if k == nil {
			return nil, errors.New("RSA private key is nil")
		}
		return PublicModulus(&k.PublicKey)
	case *x509.Certificate:
		return PublicModulus(k.PublicKey)
	case *x509.CertificateRequest:
		return PublicModulus(k.PublicKey)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotRSA, v)
	}
}

// ModulusFingerprint returns the SHA-256 of the big-endian modulus bytes as
// colon-separated hex. Keys and certificates that pair up share a fingerprint.
func ModulusFingerprint(v any) (string, error) {
	n, err := PublicModulus(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(n.Bytes())
	return ColonHex(sum[:]), nil
}

// CheckSignedBy verifies the signature on cert with the public key of
// candidate. Only the signature is checked: no CA flag, key usage, name
// chaining or validity period is consulted.
func CheckSignedBy(cert, candidate *x509.Certificate) error {
	if cert == nil || candidate == nil {
		return errors.New("certificate is nil")
	}
	if err := candidate.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return fmt.Errorf("checking signature: %w", err)
	}
	return nil
}

// SameSignature reports whether two certificates carry identical signature
// bytes. A certificate whose verifying candidate has the same signature is
// the candidate itself, i.e. self-signed.
func SameSignature(a, b *x509.Certificate) bool {
	return bytes.Equal(a.Signature, b.Signature)
}

// CommonName returns the subject common name. When the value spans several
// lines only the last one is kept.
func CommonName(name pkix.Name) string {
	cn := strings.TrimRight(name.CommonName, "\r\n")
	if i := strings.LastIndexAny(cn, "\r\n"); i >= 0 {
		cn = cn[i+1:]
	}
	return cn
}

// SubjectAlternativeNames returns the DNS subject alternative names of a
// certificate in extension order.
func SubjectAlternativeNames(cert *x509.Certificate) []string {
	if cert == nil {
		return nil
	}
	return append([]string(nil), cert.DNSNames...)
}

var oidExtensionSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// FirstAlternativeNameIsDNS reports whether the first entry of the subject
// alternative name extension is a dNSName. x509.Certificate groups SANs by
// type, so the order across types is only available from the raw extension.
func FirstAlternativeNameIsDNS(cert *x509.Certificate) bool {
	if cert == nil {
		return false
	}
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidExtensionSubjectAltName) {
			continue
		}
		input := cryptobyte.String(ext.Value)
		var names, name cryptobyte.String
		var tag cryptobyte_asn1.Tag
		if !input.ReadASN1(&names, cryptobyte_asn1.SEQUENCE) || !names.ReadAnyASN1(&name, &tag) {
			return false
		}
		return tag == cryptobyte_asn1.Tag(2).ContextSpecific()
	}
	return false
}

// CertFingerprint returns the SHA-256 fingerprint of a certificate as a
// lowercase hex string.
func CertFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:])
}

// KeyAlgorithmName returns a human-readable name for a private key's algorithm.
func KeyAlgorithmName(key crypto.PrivateKey) string {
	pub, err := GetPublicKey(key)
	if err != nil {
		return "unknown"
	}
	return PublicKeyAlgorithmName(pub)
}

// PublicKeyAlgorithmName returns a human-readable name for a public key's algorithm.
func PublicKeyAlgorithmName(key crypto.PublicKey) string {
	switch key.(type) {
	case *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PublicKey:
		return "ECDSA"
	case ed25519.PublicKey, *ed25519.PublicKey:
		return "Ed25519"
	default:
		return "unknown"
	}
}

// ColonHex formats a byte slice as colon-separated lowercase hex.
func ColonHex(b []byte) string {
	h := hex.EncodeToString(b)
	parts := make([]string, 0, len(h)/2)
	for i := 0; i < len(h); i += 2 {
		end := min(i+2, len(h))
		parts = append(parts, h[i:end])
	}
	return strings.Join(parts, ":")
}
