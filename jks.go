package sslchains

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// JKSMagic is the leading four bytes of every Java KeyStore.
var JKSMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// IsJKS reports whether data starts with the JKS magic number.
func IsJKS(data []byte) bool {
	return bytes.HasPrefix(data, JKSMagic)
}

// DecodeJKS decodes a Java KeyStore (JKS) and returns the certificates and
// private keys it contains. Each password is tried against the store; the
// password that opens the store is tried first for key entries, followed by
// the rest of the list.
//
// TrustedCertificateEntry entries yield certificates. PrivateKeyEntry entries
// yield PKCS#8 private keys and their certificate chains. Individual entry
// errors are skipped; an error is returned only if the store cannot be loaded
// or no usable entries are found.
func DecodeJKS(data []byte, passwords []string) ([]*x509.Certificate, []crypto.PrivateKey, error) {
	ks := keystore.New()
	var storePassword string
	loaded := false
	var lastErr error
	for _, password := range passwords {
		candidate := keystore.New()
		if err := candidate.Load(bytes.NewReader(data), []byte(password)); err != nil {
			lastErr = err
			continue
		}
		ks = candidate
		storePassword = password
		loaded = true
		break
	}
	if !loaded {
		if lastErr == nil {
			lastErr = errors.New("no passwords to try")
		}
		return nil, nil, fmt.Errorf("loading JKS: %w", lastErr)
	}

	var certs []*x509.Certificate
	var keys []crypto.PrivateKey

	for _, alias := range ks.Aliases() {
		if ks.IsTrustedCertificateEntry(alias) {
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				continue
			}
			cert, err := x509.ParseCertificate(entry.Certificate.Content)
			if err != nil {
				continue
			}
			certs = append(certs, cert)
		}

		if ks.IsPrivateKeyEntry(alias) {
			entry, ok := privateKeyEntry(ks, alias, storePassword, passwords)
			if !ok {
				continue
			}

			key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
			if err != nil {
				continue
			}
			keys = append(keys, key)

			for _, certEntry := range entry.CertificateChain {
				cert, err := x509.ParseCertificate(certEntry.Content)
				if err != nil {
					continue
				}
				certs = append(certs, cert)
			}
		}
	}

	if len(certs) == 0 && len(keys) == 0 {
		return nil, nil, errors.New("JKS contains no usable certificates or keys")
	}

	return certs, keys, nil
}

func privateKeyEntry(ks keystore.KeyStore, alias, storePassword string, passwords []string) (keystore.PrivateKeyEntry, bool) {
	if entry, err := ks.GetPrivateKeyEntry(alias, []byte(storePassword)); err == nil {
		return entry, true
	}
	for _, password := range passwords {
		if password == storePassword {
			continue
		}
		if entry, err := ks.GetPrivateKeyEntry(alias, []byte(password)); err == nil {
			return entry, true
		}
	}
	return keystore.PrivateKeyEntry{}, false
}
