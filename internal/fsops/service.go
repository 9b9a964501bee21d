package fsops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"xxmm/internal/logging"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// DefaultCopyWorkers bounds parallel file copies inside CopyDirectory
const DefaultCopyWorkers = 4

// rename is swapped by tests to simulate cross-device moves
var rename = os.Rename

// Service is the filesystem command surface exposed to the frontend.
// Every path argument goes through the Resolver first.
type Service struct {
	resolver    *Resolver
	dataDir     string
	copyWorkers int
}

// NewService creates a file service
func NewService(resolver *Resolver, dataDir string, copyWorkers int) *Service {
	if copyWorkers < 1 {
		copyWorkers = DefaultCopyWorkers
	}
	return &Service{
		resolver:    resolver,
		dataDir:     dataDir,
		copyWorkers: copyWorkers,
	}
}

// Resolver returns the resolver used by the service
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// AppDataDir returns the application data directory
func (s *Service) AppDataDir() (string, error) {
	if s.dataDir == "" {
		return "", errors.New("app data directory not found")
	}
	return s.dataDir, nil
}

// ensureFlags maps the frontend's ifCreate flag onto repair options:
// create an empty file when asked, otherwise leave a placeholder marker.
func ensureFlags(ifCreate bool) EnsureOptions {
	if ifCreate {
		return EnsureOptions{CreateEmpty: true}
	}
	return EnsureOptions{CreatePlaceholder: true}
}

// EnsureDirectory resolves path and makes sure a directory is there,
// creating it when ifCreate is set
func (s *Service) EnsureDirectory(path string, ifCreate bool) (string, error) {
	resolved := s.resolver.Resolve(path)
	if err := EnsureDirExists(resolved, ensureFlags(ifCreate)); err != nil {
		return "", err
	}
	return resolved, nil
}

// ============================================
// Content
// ============================================

// ReadFile reads a text file
func (s *Service) ReadFile(path string, ifCreate bool) (string, error) {
	data, err := s.ReadBinaryFile(path, ifCreate)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile writes a text file
func (s *Service) WriteFile(path, content string, ifCreate bool) error {
	return s.WriteBinaryFile(path, []byte(content), ifCreate)
}

// ReadBinaryFile reads a file as bytes
func (s *Service) ReadBinaryFile(path string, ifCreate bool) ([]byte, error) {
	resolved := s.resolver.Resolve(path)
	logging.Debug("Reading file", "path", logging.MaskPath(resolved))

	if err := EnsureExists(resolved, ensureFlags(ifCreate)); err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}

// WriteBinaryFile writes bytes to a file
func (s *Service) WriteBinaryFile(path string, data []byte, ifCreate bool) error {
	resolved := s.resolver.Resolve(path)
	logging.Debug("Writing file", "path", logging.MaskPath(resolved), "bytes", len(data))

	if err := EnsureExists(resolved, ensureFlags(ifCreate)); err != nil {
		return err
	}
	return os.WriteFile(resolved, data, FilePermissions)
}

// ============================================
// Rename / Move / Delete
// ============================================

// Rename renames a file or directory
func (s *Service) Rename(oldPath, newPath string) error {
	return os.Rename(s.resolver.Resolve(oldPath), s.resolver.Resolve(newPath))
}

// Move moves a file or directory. Moves across devices copy first and only
// remove the source once the copy is complete.
func (s *Service) Move(ctx context.Context, oldPath, newPath string) error {
	src := s.resolver.Resolve(oldPath)
	dst := s.resolver.Resolve(newPath)

	err := rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	logging.Info("Cross-device move, falling back to copy", "src", logging.MaskPath(src), "dst", logging.MaskPath(dst))
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := s.copyTree(ctx, src, dst); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}
	if err := copyFileAtomic(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src)
}

// DeleteFile removes a single file
func (s *Service) DeleteFile(path string) error {
	return os.Remove(s.resolver.Resolve(path))
}

// CreateDirectory creates a directory and all missing parents
func (s *Service) CreateDirectory(path string) error {
	return os.MkdirAll(s.resolver.Resolve(path), DirPermissions)
}

// DeleteDirectory removes a directory recursively
func (s *Service) DeleteDirectory(path string) error {
	return os.RemoveAll(s.resolver.Resolve(path))
}

// ============================================
// Copy
// ============================================

// CopyFile copies a single file
func (s *Service) CopyFile(oldPath, newPath string) error {
	src := s.resolver.Resolve(oldPath)
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}
	return copyFileAtomic(src, s.resolver.Resolve(newPath), info.Mode().Perm())
}

// CopyDirectory copies a directory tree
func (s *Service) CopyDirectory(ctx context.Context, oldPath, newPath string) error {
	src := s.resolver.Resolve(oldPath)
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	return s.copyTree(ctx, src, s.resolver.Resolve(newPath))
}

// copyTree creates the directory skeleton first, then copies files in parallel
func (s *Service) copyTree(ctx context.Context, src, dst string) error {
	if err := checkNotWithin(src, dst); err != nil {
		return err
	}

	type job struct {
		from, to string
		mode     fs.FileMode
	}
	var jobs []job

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			jobs = append(jobs, job{from: path, to: target, mode: info.Mode().Perm()})
			return nil
		}
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.copyWorkers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return copyFileAtomic(j.from, j.to, j.mode)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logging.Debug("Directory copied", "src", logging.MaskPath(src), "dst", logging.MaskPath(dst), "files", len(jobs))
	return nil
}

// checkNotWithin fails when dst is src or lies below it
func checkNotWithin(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absSrc, absDst)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("cannot copy %s into itself: %s", src, dst)
	}
	return nil
}

// copyFileAtomic writes into a temp file beside dst and renames it into place
func copyFileAtomic(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ============================================
// Queries
// ============================================

// IsFileExists reports whether path is an existing regular file
func (s *Service) IsFileExists(path string) bool {
	info, err := os.Stat(s.resolver.Resolve(path))
	return err == nil && info.Mode().IsRegular()
}

// IsDirectoryExists reports whether path is an existing directory
func (s *Service) IsDirectoryExists(path string) bool {
	info, err := os.Stat(s.resolver.Resolve(path))
	return err == nil && info.IsDir()
}

// DirectoryList returns the full paths of the entries of a directory
func (s *Service) DirectoryList(path string) ([]string, error) {
	resolved := s.resolver.Resolve(path)
	if !exists(resolved) {
		return nil, fmt.Errorf("directory not found: %s", resolved)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}
	return lo.Map(entries, func(e os.DirEntry, _ int) string {
		return filepath.Join(resolved, e.Name())
	}), nil
}

// FullPath resolves path and fails when nothing exists there
func (s *Service) FullPath(path string) (string, error) {
	resolved := s.resolver.Resolve(path)
	if !exists(resolved) {
		return "", fmt.Errorf("path not found: %s", resolved)
	}
	return resolved, nil
}

// ============================================
// Symlinks
// ============================================

// CreateSymlink creates link pointing at target
func (s *Service) CreateSymlink(target, link string) error {
	return symlink(s.resolver.Resolve(target), s.resolver.Resolve(link))
}

// IsSymlinkSupported probes whether links can be created next to path
func (s *Service) IsSymlinkSupported(path string) bool {
	if !symlinkPlatform {
		return false
	}

	resolved := s.resolver.Resolve(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return false
	}
	dir := resolved
	if !info.IsDir() {
		dir = filepath.Dir(resolved)
	}

	probe, err := os.CreateTemp(dir, ".symlink-probe-*")
	if err != nil {
		return false
	}
	probeName := probe.Name()
	probe.Close()
	defer os.Remove(probeName)

	link := probeName + ".lnk"
	if err := symlink(probeName, link); err != nil {
		logging.Debug("Symlink probe failed", "dir", logging.MaskPath(dir), "error", err)
		return false
	}
	os.Remove(link)
	return true
}
