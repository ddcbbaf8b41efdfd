package artifact

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"strings"

	"github.com/sensiblebit/sslchains"
)

// Classify parses data once and returns every RSA private key, certificate
// request and certificate it holds, in the order they appear. A single
// object keeps input.Path; containers holding several objects get virtual
// paths "<path>:<index>". Data that matches nothing yields nil. Parse
// failures are logged at debug level and never stop the remaining objects
// from being classified.
func Classify(input ClassifyInput) []Artifact {
	if len(input.Data) == 0 {
		return nil
	}

	var found []Artifact
	if sslchains.IsPEM(input.Data) {
		slog.Debug("classifying as PEM", "path", input.Path)
		found = classifyPEM(input.Data, input.Path, input.Passwords)
	} else if HasBinaryExtension(input.Path) {
		slog.Debug("classifying as binary crypto format", "path", input.Path)
		found = classifyDER(input.Data, input.Path, input.Passwords)
	}

	if len(found) == 0 {
		slog.Debug("no artifact recognized", "path", input.Path)
		return nil
	}
	if len(found) == 1 {
		found[0].Path = input.Path
		return found
	}
	for i := range found {
		found[i].Path = entryPath(input.Path, i)
	}
	return found
}

func certificateArtifact(cert *x509.Certificate) Artifact {
	return Artifact{Kind: Certificate, Certificate: cert}
}

func requestArtifact(csr *x509.CertificateRequest) Artifact {
	return Artifact{Kind: Request, Request: csr}
}

// keyArtifact keeps RSA keys and drops everything else, since only RSA
// moduli take part in matching.
func keyArtifact(key crypto.PrivateKey, source string) (Artifact, bool) {
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		slog.Debug("skipping non-RSA private key", "path", source, "algorithm", sslchains.KeyAlgorithmName(key))
		return Artifact{}, false
	}
	return Artifact{Kind: PrivateKey, Key: rsaKey}, true
}

// classifyPEM walks every PEM block in order. Blocks that fail to parse are
// logged and skipped.
func classifyPEM(data []byte, source string, passwords []string) []Artifact {
	var found []Artifact
	rest := data
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch {
		case block.Type == "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				slog.Debug("skipping malformed certificate", "path", source, "error", err)
				continue
			}
			found = append(found, certificateArtifact(cert))

		case sslchains.IsRequestBlock(block.Type):
			csr, err := x509.ParseCertificateRequest(block.Bytes)
			if err != nil {
				slog.Debug("skipping malformed certificate request", "path", source, "error", err)
				continue
			}
			found = append(found, requestArtifact(csr))

		case block.Type == "PKCS7":
			certs, err := sslchains.DecodePKCS7(block.Bytes)
			if err != nil {
				slog.Debug("skipping malformed PKCS#7 block", "path", source, "error", err)
				continue
			}
			for _, cert := range certs {
				found = append(found, certificateArtifact(cert))
			}

		case strings.Contains(block.Type, "PRIVATE KEY"):
			key, err := sslchains.ParsePEMPrivateKeyWithPasswords(pem.EncodeToMemory(block), passwords)
			if err != nil {
				slog.Debug("parsing private key from PEM block", "path", source, "error", err)
				continue
			}
			if a, ok := keyArtifact(key, source); ok {
				found = append(found, a)
			}
		}
	}
	return found
}

// classifyDER tries all binary crypto formats in priority order:
// DER certificate(s) → DER request → PKCS#7 → PKCS#8 → PKCS#1 RSA → JKS → PKCS#12.
func classifyDER(data []byte, source string, passwords []string) []Artifact {
	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		slog.Debug("parsed DER certificate(s)", "path", source, "count", len(certs))
		found := make([]Artifact, 0, len(certs))
		for _, cert := range certs {
			found = append(found, certificateArtifact(cert))
		}
		return found
	}

	if csr, err := x509.ParseCertificateRequest(data); err == nil {
		slog.Debug("parsed DER certificate request", "path", source)
		return []Artifact{requestArtifact(csr)}
	}

	if certs, err := sslchains.DecodePKCS7(data); err == nil {
		slog.Debug("parsed PKCS#7 certificate(s)", "path", source, "count", len(certs))
		found := make([]Artifact, 0, len(certs))
		for _, cert := range certs {
			found = append(found, certificateArtifact(cert))
		}
		return found
	}

	if key, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		slog.Debug("parsed PKCS#8 private key", "path", source)
		if a, ok := keyArtifact(key, source); ok {
			return []Artifact{a}
		}
		return nil
	}

	if key, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		slog.Debug("parsed PKCS#1 RSA private key", "path", source)
		return []Artifact{{Kind: PrivateKey, Key: key}}
	}

	if sslchains.IsJKS(data) {
		certs, keys, err := sslchains.DecodeJKS(data, passwords)
		if err != nil {
			slog.Debug("JKS decode failed", "path", source, "error", err)
			return nil
		}
		var found []Artifact
		for _, key := range keys {
			if a, ok := keyArtifact(key, source); ok {
				found = append(found, a)
			}
		}
		for _, cert := range certs {
			found = append(found, certificateArtifact(cert))
		}
		return found
	}

	contents, err := sslchains.DecodePKCS12(data, passwords)
	if err != nil {
		slog.Debug("no known format matched binary data", "path", source, "error", err)
		return nil
	}
	var found []Artifact
	if contents.Key != nil {
		if a, ok := keyArtifact(contents.Key, source); ok {
			found = append(found, a)
		}
	}
	if contents.Leaf != nil {
		found = append(found, certificateArtifact(contents.Leaf))
	}
	for _, ca := range contents.CAs {
		found = append(found, certificateArtifact(ca))
	}
	return found
}
