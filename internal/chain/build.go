package chain

import (
	"log/slog"

	"github.com/sensiblebit/sslchains/internal/artifact"
)

// BuildInput holds parameters for Build.
type BuildInput struct {
	// Artifacts in discovery order.
	Artifacts []artifact.Artifact
	// ExtraCandidates are appended to the signer pool after every
	// certificate artifact, e.g. a trusted root bundle.
	ExtraCandidates []Candidate
}

// Build groups artifacts into chains in four phases, each completed before
// the next begins:
//
//  1. one chain per private key, in discovery order;
//  2. the first request whose public key matches the chain key;
//  3. every certificate whose public key matches the chain key;
//  4. the issuer lineage of every attached certificate, resolved against all
//     certificate artifacts followed by the extra candidates.
//
// Build never fails; artifacts that match nothing are simply left out.
func Build(input BuildInput) []*Chain {
	var keys, requests, certs []artifact.Artifact
	for _, a := range input.Artifacts {
		switch a.Kind {
		case artifact.PrivateKey:
			if a.Key != nil {
				keys = append(keys, a)
			}
		case artifact.Request:
			if a.Request != nil {
				requests = append(requests, a)
			}
		case artifact.Certificate:
			if a.Certificate != nil {
				certs = append(certs, a)
			}
		}
	}

	chains := make([]*Chain, 0, len(keys))
	for _, k := range keys {
		chains = append(chains, &Chain{Key: &KeyFile{Path: k.Path, Key: k.Key}})
	}
	slog.Debug("initialized chains", "keys", len(chains))

	for _, c := range chains {
		for _, r := range requests {
			if KeyMatches(c.Key.Key, r.Request.PublicKey) {
				c.Request = &RequestFile{Path: r.Path, Request: r.Request}
				slog.Debug("attached request", "key", c.Key.Path, "request", r.Path)
				break
			}
		}
	}

	for _, c := range chains {
		for _, cert := range certs {
			if KeyMatches(c.Key.Key, cert.Certificate.PublicKey) {
				c.Certificates = append(c.Certificates, &CertificateRecord{Path: cert.Path, Certificate: cert.Certificate})
				slog.Debug("attached certificate", "key", c.Key.Path, "certificate", cert.Path)
			}
		}
	}

	candidates := make([]Candidate, 0, len(certs)+len(input.ExtraCandidates))
	for _, cert := range certs {
		candidates = append(candidates, Candidate{Path: cert.Path, Certificate: cert.Certificate})
	}
	candidates = append(candidates, input.ExtraCandidates...)
	pool := NewPool(candidates)
	slog.Debug("resolving lineage", "candidates", pool.Len())

	for _, c := range chains {
		for i, record := range c.Certificates {
			c.Certificates[i] = pool.Resolve(record.Path, record.Certificate)
		}
	}

	return chains
}
