package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sensiblebit/sslchains"
	"github.com/sensiblebit/sslchains/internal/artifact"
	"github.com/sensiblebit/sslchains/internal/catalog"
	"github.com/sensiblebit/sslchains/internal/chain"
	"github.com/sensiblebit/sslchains/internal/discover"
	"github.com/valyala/bytebufferpool"
)

// DefaultMaxFileSize is the largest file read during a scan.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var errFileTooLarge = errors.New("file exceeds max size")

// ScanInput holds the parameters for Scan.
type ScanInput struct {
	// Args are the paths named on the command line; empty means ".".
	Args        []string
	Discover    discover.Options
	Passwords   []string
	MaxFileSize int64
	Limits      ArchiveLimits
	// CatalogPath, when set, adds the items of a certkit SQLite catalog.
	CatalogPath string
	// MozillaRoots appends the embedded Mozilla roots as signer candidates.
	MozillaRoots bool
}

// ScanResult is the outcome of a scan.
type ScanResult struct {
	Chains    []*chain.Chain
	FilesRead int
	Skipped   int
	Artifacts map[artifact.Kind]int
}

// Scan discovers files, classifies each one once, and builds chains from
// the results. An unreadable file that was named explicitly aborts the scan
// with no partial result; any other unreadable file is logged and skipped.
func Scan(input ScanInput) (*ScanResult, error) {
	maxSize := input.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	limits := input.Limits
	if limits == (ArchiveLimits{}) {
		limits = DefaultArchiveLimits()
	}

	paths, err := discover.Expand(input.Args, input.Discover)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	result := &ScanResult{}
	var artifacts []artifact.Artifact

	for _, p := range paths {
		data, err := readFile(p.Name, maxSize)
		if err != nil {
			if p.Explicit && !errors.Is(err, errFileTooLarge) {
				return nil, err
			}
			slog.Warn("Error processing file", "path", p.Name, "error", err)
			result.Skipped++
			continue
		}
		result.FilesRead++
		artifacts = append(artifacts, classifyFile(p.Name, data, input.Passwords, limits)...)
	}

	if input.CatalogPath != "" {
		items, err := catalog.Load(input.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		for _, item := range items {
			artifacts = append(artifacts, artifact.Classify(artifact.ClassifyInput{
				Data:      item.Data,
				Path:      item.Path,
				Passwords: input.Passwords,
			})...)
		}
	}

	var extra []chain.Candidate
	if input.MozillaRoots {
		extra, err = mozillaCandidates()
		if err != nil {
			return nil, err
		}
	}

	result.Artifacts = artifact.Count(artifacts)
	result.Chains = chain.Build(chain.BuildInput{Artifacts: artifacts, ExtraCandidates: extra})
	slog.Debug("scan complete",
		"files", result.FilesRead, "skipped", result.Skipped,
		"keys", result.Artifacts[artifact.PrivateKey],
		"requests", result.Artifacts[artifact.Request],
		"certificates", result.Artifacts[artifact.Certificate],
		"chains", len(result.Chains))
	return result, nil
}

// classifyFile classifies a file, expanding archives into their entries.
func classifyFile(path string, data []byte, passwords []string, limits ArchiveLimits) []artifact.Artifact {
	format := ArchiveFormat(path)
	if format == "" {
		return artifact.Classify(artifact.ClassifyInput{Data: data, Path: path, Passwords: passwords})
	}

	entries, err := ExtractArchive(ExtractArchiveInput{
		ArchivePath: path,
		Data:        data,
		Format:      format,
		Limits:      limits,
	})
	if err != nil {
		slog.Warn("Error processing archive", "path", path, "error", err)
		return nil
	}
	var artifacts []artifact.Artifact
	for _, entry := range entries {
		artifacts = append(artifacts, artifact.Classify(artifact.ClassifyInput{
			Data:      entry.Data,
			Path:      entry.Path,
			Passwords: passwords,
		})...)
	}
	return artifacts
}

// readFile reads at most maxSize bytes of path through a pooled buffer and
// returns a copy the caller owns. The file is closed before returning.
func readFile(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(f, safeLimitSize(maxSize))); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if int64(buf.Len()) > maxSize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, errFileTooLarge, maxSize)
	}
	return append([]byte(nil), buf.B...), nil
}

// mozillaCandidates returns the embedded Mozilla roots as signer candidates
// named "mozilla:<common name>".
func mozillaCandidates() ([]chain.Candidate, error) {
	roots, err := sslchains.MozillaRoots()
	if err != nil {
		return nil, fmt.Errorf("loading Mozilla roots: %w", err)
	}
	candidates := make([]chain.Candidate, 0, len(roots))
	for _, root := range roots {
		name := sslchains.CommonName(root.Subject)
		if name == "" {
			name = sslchains.CertFingerprint(root)[:16]
		}
		candidates = append(candidates, chain.Candidate{Path: "mozilla:" + name, Certificate: root})
	}
	slog.Debug("loaded Mozilla roots", "count", len(candidates))
	return candidates, nil
}
