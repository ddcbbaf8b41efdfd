package chain

import (
	"crypto/x509"

	"github.com/sensiblebit/sslchains"
)

// Outcome is the result of looking for a certificate's signer.
type Outcome int

const (
	// OutcomeUnknown means no eligible candidate verifies the signature.
	OutcomeUnknown Outcome = iota
	// OutcomeSelfSigned means the verifying candidate is the certificate itself.
	OutcomeSelfSigned
	// OutcomeIssued means a different candidate verifies the signature.
	OutcomeIssued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelfSigned:
		return "self-signed"
	case OutcomeIssued:
		return "issued"
	default:
		return "unknown"
	}
}

// Candidate is a certificate that may have signed others.
type Candidate struct {
	Path        string
	Certificate *x509.Certificate
}

// Resolution reports the outcome of ResolveIssuer. Index is the position of
// the verifying candidate in the pool, or -1 for OutcomeUnknown.
type Resolution struct {
	Outcome Outcome
	Index   int
}

type verifyKey struct {
	fingerprint string
	candidate   int
}

// Pool is the ordered set of signer candidates. Signature checks are
// memoized, so a Pool must not be used from several goroutines at once.
type Pool struct {
	candidates   []Candidate
	fingerprints []string
	verified     map[verifyKey]bool
}

// NewPool returns a pool that scans candidates in the given order.
func NewPool(candidates []Candidate) *Pool {
	p := &Pool{
		candidates:   make([]Candidate, 0, len(candidates)),
		fingerprints: make([]string, 0, len(candidates)),
		verified:     make(map[verifyKey]bool),
	}
	for _, c := range candidates {
		if c.Certificate == nil {
			continue
		}
		p.candidates = append(p.candidates, c)
		p.fingerprints = append(p.fingerprints, sslchains.CertFingerprint(c.Certificate))
	}
	return p
}

// Len returns the number of candidates.
func (p *Pool) Len() int { return len(p.candidates) }

// Candidate returns the i-th candidate.
func (p *Pool) Candidate(i int) Candidate { return p.candidates[i] }

func (p *Pool) verifies(fingerprint string, cert *x509.Certificate, i int) bool {
	key := verifyKey{fingerprint: fingerprint, candidate: i}
	if ok, seen := p.verified[key]; seen {
		return ok
	}
	ok := sslchains.CheckSignedBy(cert, p.candidates[i].Certificate) == nil
	p.verified[key] = ok
	return ok
}

// ResolveIssuer scans the pool in order and returns the first candidate whose
// public key verifies cert's signature. Candidates whose fingerprint is in
// visited are skipped. A verifying candidate carrying the same signature
// bytes as cert is cert itself, so the outcome is OutcomeSelfSigned.
func (p *Pool) ResolveIssuer(cert *x509.Certificate, visited map[string]bool) Resolution {
	fingerprint := sslchains.CertFingerprint(cert)
	for i, candidate := range p.candidates {
		if visited[p.fingerprints[i]] {
			continue
		}
		if !p.verifies(fingerprint, cert, i) {
			continue
		}
		if sslchains.SameSignature(cert, candidate.Certificate) {
			return Resolution{Outcome: OutcomeSelfSigned, Index: i}
		}
		return Resolution{Outcome: OutcomeIssued, Index: i}
	}
	return Resolution{Outcome: OutcomeUnknown, Index: -1}
}

// Resolve returns a record for cert with its full issuer lineage attached.
// The walk is iterative: every certificate already on the walk is marked
// visited before its issuer's issuer is looked up, so each step reaches a
// certificate not seen before and the walk ends after at most Len steps.
func (p *Pool) Resolve(path string, cert *x509.Certificate) *CertificateRecord {
	record := &CertificateRecord{Path: path, Certificate: cert}
	visited := make(map[string]bool)
	current := record
	for {
		res := p.ResolveIssuer(current.Certificate, visited)
		switch res.Outcome {
		case OutcomeSelfSigned:
			current.SelfSigned = true
			return record
		case OutcomeIssued:
			visited[sslchains.CertFingerprint(current.Certificate)] = true
			issuer := p.candidates[res.Index]
			next := &CertificateRecord{Path: issuer.Path, Certificate: issuer.Certificate}
			current.Issuer = next
			current = next
		default:
			return record
		}
	}
}
