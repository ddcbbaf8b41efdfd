package internal

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sensiblebit/sslchains"
	"github.com/sensiblebit/sslchains/internal/artifact"
)

// InspectResult holds the inspection details for one artifact of a file.
type InspectResult struct {
	Path       string        `json:"path"`
	Type       artifact.Kind `json:"type"`
	Subject    string        `json:"subject,omitempty"`
	Issuer     string        `json:"issuer,omitempty"`
	Serial     string        `json:"serial,omitempty"`
	NotBefore  string        `json:"not_before,omitempty"`
	NotAfter   string        `json:"not_after,omitempty"`
	KeyAlgo    string        `json:"key_algorithm,omitempty"`
	KeySize    int           `json:"key_size,omitempty"`
	SANs       []string      `json:"sans,omitempty"`
	Modulus    string        `json:"modulus_sha256,omitempty"`
	SHA256     string        `json:"sha256_fingerprint,omitempty"`
	SigAlg     string        `json:"signature_algorithm,omitempty"`
	SelfSigned bool          `json:"self_signed,omitempty"`
}

// InspectFile classifies a single file, expanding containers and archives
// the same way a scan does, and returns one result per artifact found.
func InspectFile(path string, passwords []string) ([]InspectResult, error) {
	data, err := readFile(path, DefaultMaxFileSize)
	if err != nil {
		return nil, err
	}

	artifacts := classifyFile(path, data, passwords, DefaultArchiveLimits())
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no RSA keys, certificate requests, or certificates found in %s", path)
	}

	results := make([]InspectResult, 0, len(artifacts))
	for _, a := range artifacts {
		results = append(results, inspectArtifact(a))
	}
	return results, nil
}

func inspectArtifact(a artifact.Artifact) InspectResult {
	r := InspectResult{Path: a.Path, Type: a.Kind}
	switch a.Kind {
	case artifact.PrivateKey:
		r.KeyAlgo = sslchains.KeyAlgorithmName(a.Key)
		r.KeySize = a.Key.N.BitLen()
		r.Modulus = modulusFingerprint(a.Key)
	case artifact.Request:
		r.Subject = a.Request.Subject.String()
		r.SANs = a.Request.DNSNames
		r.KeyAlgo = sslchains.PublicKeyAlgorithmName(a.Request.PublicKey)
		r.KeySize = modulusBits(a.Request)
		r.Modulus = modulusFingerprint(a.Request)
		r.SigAlg = a.Request.SignatureAlgorithm.String()
	case artifact.Certificate:
		inspectCertificate(&r, a.Certificate)
	}
	return r
}

func inspectCertificate(r *InspectResult, cert *x509.Certificate) {
	r.Subject = cert.Subject.String()
	r.Issuer = cert.Issuer.String()
	r.Serial = cert.SerialNumber.String()
	r.NotBefore = cert.NotBefore.UTC().Format(time.RFC3339)
	r.NotAfter = cert.NotAfter.UTC().Format(time.RFC3339)
	r.SANs = sslchains.SubjectAlternativeNames(cert)
	r.KeyAlgo = sslchains.PublicKeyAlgorithmName(cert.PublicKey)
	r.KeySize = modulusBits(cert)
	r.Modulus = modulusFingerprint(cert)
	r.SHA256 = sslchains.CertFingerprint(cert)
	r.SigAlg = cert.SignatureAlgorithm.String()
	r.SelfSigned = sslchains.CheckSignedBy(cert, cert) == nil
}

// modulusBits returns the RSA modulus size in bits, or 0 for other keys.
func modulusBits(v any) int {
	n, err := sslchains.PublicModulus(v)
	if err != nil {
		return 0
	}
	return n.BitLen()
}

func modulusFingerprint(v any) string {
	fp, err := sslchains.ModulusFingerprint(v)
	if err != nil {
		return ""
	}
	return fp
}

// FormatInspectResults formats inspection results as text or JSON.
func FormatInspectResults(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch r.Type {
		case artifact.Certificate:
			fmt.Fprintf(&sb, "Certificate: %s\n", r.Path)
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
			if len(r.SANs) > 0 {
				fmt.Fprintf(&sb, "  SANs:        %s\n", strings.Join(r.SANs, ", "))
			}
			fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
			fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
			fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
			fmt.Fprintf(&sb, "  Not After:   %s\n", r.NotAfter)
			fmt.Fprintf(&sb, "  Key:         %s %d\n", r.KeyAlgo, r.KeySize)
			fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
			fmt.Fprintf(&sb, "  Self-signed: %t\n", r.SelfSigned)
			fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
			if r.Modulus != "" {
				fmt.Fprintf(&sb, "  Modulus:     %s\n", r.Modulus)
			}
		case artifact.Request:
			fmt.Fprintf(&sb, "Certificate Signing Request: %s\n", r.Path)
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
			fmt.Fprintf(&sb, "  Key:         %s %d\n", r.KeyAlgo, r.KeySize)
			fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
			if len(r.SANs) > 0 {
				fmt.Fprintf(&sb, "  DNS Names:   %s\n", strings.Join(r.SANs, ", "))
			}
			if r.Modulus != "" {
				fmt.Fprintf(&sb, "  Modulus:     %s\n", r.Modulus)
			}
		case artifact.PrivateKey:
			fmt.Fprintf(&sb, "Private Key: %s\n", r.Path)
			fmt.Fprintf(&sb, "  Type:        %s\n", r.KeyAlgo)
			fmt.Fprintf(&sb, "  Size:        %d\n", r.KeySize)
			fmt.Fprintf(&sb, "  Modulus:     %s\n", r.Modulus)
		}
	}
	return sb.String()
}
