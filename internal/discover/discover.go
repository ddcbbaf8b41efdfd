// Package discover turns command-line arguments into the ordered list of
// files to scan.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFiles is the number of files scanned when no limit is given.
const DefaultMaxFiles = 1024

// Options controls directory expansion.
type Options struct {
	// Hidden includes entries whose name starts with ".".
	Hidden bool
	// Recursive descends into subdirectories.
	Recursive bool
	// FollowSymlinks includes symlinked entries found inside directories.
	// Symlinks named explicitly on the command line are always followed.
	FollowSymlinks bool
	// CrossFilesystems lets recursion enter directories on a different
	// device than the argument they were found under.
	CrossFilesystems bool
	// MaxFiles caps the number of returned paths; 0 means unlimited.
	MaxFiles int
}

// Path is one file to scan.
type Path struct {
	Name string
	// Explicit is true when the file was named on the command line. Read
	// errors on explicit files are fatal; others are skipped.
	Explicit bool
}

var errLimitReached = errors.New("file limit reached")

type expander struct {
	opts    Options
	paths   []Path
	visited map[string]bool
}

// Expand resolves args into files. With no args the current directory is
// expanded. Directory entries are returned in lexical order and explicit
// files keep their argument order. A missing or unreadable argument is an
// error; problems below an argument directory are logged and skipped.
func Expand(args []string, opts Options) ([]Path, error) {
	e := &expander{opts: opts, visited: make(map[string]bool)}

	if len(args) == 0 {
		if err := e.expandDir("."); err != nil && !errors.Is(err, errLimitReached) {
			return nil, err
		}
		return e.paths, nil
	}

	for _, arg := range args {
		err := e.expandArg(arg)
		if errors.Is(err, errLimitReached) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return e.paths, nil
}

func (e *expander) expandArg(arg string) error {
	info, err := os.Stat(arg)
	if err != nil {
		return fmt.Errorf("reading %s: %w", arg, err)
	}
	switch {
	case info.IsDir():
		return e.expandDir(arg)
	case info.Mode().IsRegular():
		return e.add(Path{Name: arg, Explicit: true})
	default:
		slog.Debug("skipping non-regular file", "path", arg, "mode", info.Mode().String())
		return nil
	}
}

func (e *expander) add(p Path) error {
	if e.opts.MaxFiles > 0 && len(e.paths) >= e.opts.MaxFiles {
		slog.Warn("file limit reached, remaining files skipped", "limit", e.opts.MaxFiles, "path", p.Name)
		return errLimitReached
	}
	e.paths = append(e.paths, p)
	return nil
}

// expandDir lists an argument directory and, when recursive, everything
// beneath it.
func (e *expander) expandDir(root string) error {
	rootDev, rootDevOK := deviceID(root)
	if real, err := filepath.EvalSymlinks(root); err == nil {
		e.visited[real] = true
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", root, err)
	}
	return e.walkEntries(root, entries, rootDev, rootDevOK)
}

func (e *expander) walkEntries(dir string, entries []fs.DirEntry, rootDev uint64, rootDevOK bool) error {
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if !e.opts.Hidden && strings.HasPrefix(name, ".") {
			slog.Debug("skipping hidden entry", "path", path)
			continue
		}

		info, err := entryInfo(entry, path, e.opts.FollowSymlinks)
		if err != nil {
			slog.Debug("skipping entry", "path", path, "error", err)
			continue
		}
		if info == nil {
			slog.Debug("skipping symlink", "path", path)
			continue
		}

		switch {
		case info.Mode().IsRegular():
			if err := e.add(Path{Name: path}); err != nil {
				return err
			}

		case info.IsDir():
			if !e.opts.Recursive {
				continue
			}
			if err := e.descend(path, rootDev, rootDevOK); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *expander) descend(path string, rootDev uint64, rootDevOK bool) error {
	if !e.opts.CrossFilesystems && rootDevOK {
		if dev, ok := deviceID(path); ok && dev != rootDev {
			slog.Debug("skipping directory on another filesystem", "path", path)
			return nil
		}
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		slog.Debug("skipping directory", "path", path, "error", err)
		return nil
	}
	if e.visited[real] {
		slog.Debug("skipping already visited directory", "path", path)
		return nil
	}
	e.visited[real] = true

	entries, err := os.ReadDir(path)
	if err != nil {
		slog.Warn("Error reading directory", "path", path, "error", err)
		return nil
	}
	return e.walkEntries(path, entries, rootDev, rootDevOK)
}

// entryInfo returns the file info for a directory entry, resolving symlinks
// when follow is set. A nil info with nil error means the entry is a
// symlink that must not be followed.
func entryInfo(entry fs.DirEntry, path string, follow bool) (fs.FileInfo, error) {
	if entry.Type()&fs.ModeSymlink != 0 {
		if !follow {
			return nil, nil
		}
		return os.Stat(path)
	}
	return entry.Info()
}
