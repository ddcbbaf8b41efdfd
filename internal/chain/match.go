package chain

import (
	"crypto"
	"crypto/rsa"

	"github.com/sensiblebit/sslchains"
)

// KeyMatches reports whether key and pub form an RSA key pair, which is the
// case exactly when their moduli are equal. Non-RSA public keys and nil
// values never match.
func KeyMatches(key *rsa.PrivateKey, pub crypto.PublicKey) bool {
	if key == nil || key.N == nil {
		return false
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return false
	}
	n, err := sslchains.PublicModulus(rsaPub)
	if err != nil {
		return false
	}
	return key.N.Cmp(n) == 0
}
