package fsops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xxmm/internal/logging"
)

const (
	// DirPermissions for directories created on demand (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions for files written by commands (rw-r--r--)
	FilePermissions = 0644

	// PlaceholderExt replaces the extension of a missing file's marker
	PlaceholderExt = "notfound"

	placeholderContent = "File not found"
)

var (
	// ErrNotFound is returned when a target path is missing
	ErrNotFound = errors.New("file not found")

	// ErrUnsupported is returned for operations the platform cannot perform
	ErrUnsupported = errors.New("operation is not supported on this platform")
)

// PlaceholderError reports that a missing file was replaced by a marker.
type PlaceholderError struct {
	Path        string
	Placeholder string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("file not found, created placeholder at %s", e.Placeholder)
}

func (e *PlaceholderError) Unwrap() error {
	return ErrNotFound
}

// EnsureOptions selects how a missing target is repaired.
type EnsureOptions struct {
	CreateEmpty       bool
	CreatePlaceholder bool
}

// Resolver turns frontend paths into absolute paths under a base directory.
type Resolver struct {
	baseDir string
}

// NewResolver creates a resolver rooted at baseDir
func NewResolver(baseDir string) *Resolver {
	return &Resolver{baseDir: baseDir}
}

// BaseDir returns the directory relative paths are joined with
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// Resolve returns path unchanged when absolute, otherwise joined with the base dir.
func (r *Resolver) Resolve(path string) string {
	return Resolve(path, r.baseDir)
}

// Resolve joins a relative path with baseDir. Absolute paths are the identity.
func Resolve(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// PlaceholderPath swaps the extension of path for ".notfound".
func PlaceholderPath(path string) string {
	ext := filepath.Ext(path)
	// a leading dot is a hidden name, not an extension
	if ext == filepath.Base(path) {
		ext = ""
	}
	return strings.TrimSuffix(path, ext) + "." + PlaceholderExt
}

// EnsureExists makes sure a file exists at path according to opts.
// With neither option set the filesystem is never touched.
func EnsureExists(path string, opts EnsureOptions) error {
	return ensure(path, opts, false)
}

// EnsureDirExists is EnsureExists for directories: CreateEmpty makes a directory.
func EnsureDirExists(path string, opts EnsureOptions) error {
	return ensure(path, opts, true)
}

func ensure(path string, opts EnsureOptions, dir bool) error {
	logging.Debug("Checking path existence", "path", logging.MaskPath(path))

	if opts.CreateEmpty || opts.CreatePlaceholder {
		parent := filepath.Dir(path)
		if !exists(parent) {
			logging.Debug("Creating parent directory", "path", logging.MaskPath(parent))
			if err := os.MkdirAll(parent, DirPermissions); err != nil {
				return err
			}
		}
	}

	if exists(path) {
		return nil
	}

	switch {
	case opts.CreateEmpty:
		if dir {
			logging.Debug("Creating directory", "path", logging.MaskPath(path))
			return os.MkdirAll(path, DirPermissions)
		}
		logging.Debug("Creating empty file", "path", logging.MaskPath(path))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		return f.Close()
	case opts.CreatePlaceholder:
		marker := PlaceholderPath(path)
		if err := os.WriteFile(marker, []byte(placeholderContent), FilePermissions); err != nil {
			return err
		}
		logging.Warn("Missing file replaced by placeholder", "path", logging.MaskPath(path), "placeholder", logging.MaskPath(marker))
		return &PlaceholderError{Path: path, Placeholder: marker}
	default:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
