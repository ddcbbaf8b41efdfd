package internal

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
)

// ArchiveLimits bounds how much an archive may expand while it is read.
type ArchiveLimits struct {
	// MaxDecompressionRatio caps uncompressed/compressed size per ZIP entry.
	// TAR members are stored raw and are never ratio checked.
	MaxDecompressionRatio int64

	// MaxTotalSize caps the bytes kept from one archive.
	MaxTotalSize int64

	// MaxEntryCount caps the entries kept from one archive.
	MaxEntryCount int

	// MaxEntrySize is the largest entry that is read; bigger ones are
	// ignored. The CLI sets it from --max-file-size.
	MaxEntrySize int64
}

// DefaultArchiveLimits returns the limits used when none are configured.
func DefaultArchiveLimits() ArchiveLimits {
	return ArchiveLimits{
		MaxDecompressionRatio: 100,
		MaxTotalSize:          256 << 20,
		MaxEntryCount:         10_000,
		MaxEntrySize:          DefaultMaxFileSize,
	}
}

// ExtractArchiveInput holds the parameters for archive extraction.
type ExtractArchiveInput struct {
	ArchivePath string
	Data        []byte
	Format      string
	Limits      ArchiveLimits
}

// ArchiveEntry is one regular file extracted from an archive. Path is the
// virtual path "<archive>:<entry name>".
type ArchiveEntry struct {
	Path string
	Data []byte
}

// archiveExtensions maps single extensions to archive formats. ".tar.gz" is
// matched in ArchiveFormat.
var archiveExtensions = map[string]string{
	".zip": "zip",
	".tar": "tar",
	".tgz": "tar.gz",
}

// ArchiveFormat returns "zip", "tar" or "tar.gz" for a path with an archive
// extension and "" otherwise.
func ArchiveFormat(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") {
		return "tar.gz"
	}
	ext := strings.ToLower(filepath.Ext(path))
	return archiveExtensions[ext]
}

// IsArchive reports whether the given path has a recognized archive extension.
func IsArchive(path string) bool {
	return ArchiveFormat(path) != ""
}

// ExtractArchive returns the regular file entries of an archive in archive
// order, skipping directories, nested archives and anything over the limits.
// Archives inside archives are not opened.
func ExtractArchive(input ExtractArchiveInput) ([]ArchiveEntry, error) {
	var next memberFunc
	switch input.Format {
	case "zip":
		reader, err := zip.NewReader(bytes.NewReader(input.Data), int64(len(input.Data)))
		if err != nil {
			return nil, fmt.Errorf("opening ZIP archive %s: %w", input.ArchivePath, err)
		}
		next = zipMembers(reader)
	case "tar", "tar.gz":
		var r io.Reader = bytes.NewReader(input.Data)
		if input.Format == "tar.gz" {
			gr, err := gzip.NewReader(r)
			if err != nil {
				return nil, fmt.Errorf("opening gzip layer for %s: %w", input.ArchivePath, err)
			}
			defer func() {
				if err := gr.Close(); err != nil {
					slog.Warn("closing gzip stream", "archive", input.ArchivePath, "error", err)
				}
			}()
			r = gr
		}
		next = tarMembers(tar.NewReader(r))
	default:
		return nil, fmt.Errorf("unsupported archive format: %q", input.Format)
	}

	c := collector{input: input}
	if err := c.run(next); err != nil {
		return nil, err
	}
	slog.Debug("extracted archive", "archive", input.ArchivePath, "format", input.Format, "entries", len(c.entries))
	return c.entries, nil
}

// member is one archive member as seen by the collector. packed is the
// compressed size for formats that record one, zero otherwise.
type member struct {
	name    string
	regular bool
	size    int64
	packed  int64
	open    func() (io.ReadCloser, error)
}

// memberFunc yields the next archive member, or io.EOF when there are none.
type memberFunc func() (member, error)

func zipMembers(r *zip.Reader) memberFunc {
	i := 0
	return func() (member, error) {
		if i >= len(r.File) {
			return member{}, io.EOF
		}
		f := r.File[i]
		i++
		return member{
			name:    f.Name,
			regular: !f.FileInfo().IsDir(),
			size:    int64(f.UncompressedSize64),
			packed:  int64(f.CompressedSize64),
			open:    f.Open,
		}, nil
	}
}

func tarMembers(tr *tar.Reader) memberFunc {
	return func() (member, error) {
		h, err := tr.Next()
		if err != nil {
			return member{}, err
		}
		// Unread data is skipped by the following Next call.
		return member{
			name:    h.Name,
			regular: h.Typeflag == tar.TypeReg,
			size:    h.Size,
			open:    func() (io.ReadCloser, error) { return io.NopCloser(tr), nil },
		}, nil
	}
}

// collector applies ArchiveLimits to a stream of members and keeps the ones
// that pass.
type collector struct {
	input   ExtractArchiveInput
	entries []ArchiveEntry
	total   int64
}

func (c *collector) run(next memberFunc) error {
	limits := c.input.Limits
	for {
		m, err := next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if len(c.entries) == 0 {
				return fmt.Errorf("reading %s archive %s: %w", strings.ToUpper(c.input.Format), c.input.ArchivePath, err)
			}
			slog.Warn("archive is damaged, keeping entries read so far",
				"archive", c.input.ArchivePath, "entries", len(c.entries), "error", err)
			return nil
		}

		if len(c.entries) >= limits.MaxEntryCount {
			slog.Warn("too many archive entries, ignoring the rest",
				"archive", c.input.ArchivePath, "limit", limits.MaxEntryCount)
			return nil
		}
		if !m.regular {
			continue
		}
		if IsArchive(m.name) {
			slog.Debug("not opening nested archive", "archive", c.input.ArchivePath, "entry", m.name)
			continue
		}
		if m.packed > 0 && m.size/m.packed > limits.MaxDecompressionRatio {
			slog.Warn("ignoring archive entry with excessive compression ratio",
				"archive", c.input.ArchivePath, "entry", m.name,
				"ratio", m.size/m.packed, "limit", limits.MaxDecompressionRatio)
			continue
		}
		if m.size > limits.MaxEntrySize {
			slog.Debug("ignoring large archive entry",
				"archive", c.input.ArchivePath, "entry", m.name, "size", m.size, "limit", limits.MaxEntrySize)
			continue
		}
		if c.total+m.size > limits.MaxTotalSize {
			slog.Warn("archive size budget used up, ignoring the rest",
				"archive", c.input.ArchivePath, "limit", limits.MaxTotalSize)
			return nil
		}

		data, err := readMember(m, limits.MaxEntrySize)
		if err != nil {
			slog.Debug("reading archive entry", "archive", c.input.ArchivePath, "entry", m.name, "error", err)
			continue
		}
		c.total += int64(len(data))
		c.entries = append(c.entries, ArchiveEntry{Path: c.input.ArchivePath + ":" + m.name, Data: data})
	}
}

// readMember reads at most maxSize bytes of a member. Headers can understate
// the real size, so the limit is enforced on the bytes actually read.
func readMember(m member, maxSize int64) ([]byte, error) {
	rc, err := m.open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", m.name, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.Warn("closing archive entry", "entry", m.name, "error", err)
		}
	}()

	limit := maxSize
	if limit < math.MaxInt64 {
		limit++
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.name, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", m.name, maxSize)
	}
	return data, nil
}
