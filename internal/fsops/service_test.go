package fsops

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	base := t.TempDir()
	return NewService(NewResolver(base), filepath.Join(base, "appdata"), 2), base
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestReadFileCreatesWhenAsked(t *testing.T) {
	s, base := newTestService(t)

	content, err := s.ReadFile("config/settings.json", true)
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.FileExists(t, filepath.Join(base, "config", "settings.json"))
}

func TestReadFileLeavesPlaceholderWhenMissing(t *testing.T) {
	s, base := newTestService(t)

	_, err := s.ReadFile("mods/a.txt", false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.FileExists(t, filepath.Join(base, "mods", "a.notfound"))
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	s, base := newTestService(t)

	require.NoError(t, s.WriteFile("notes.txt", "hello", true))
	got, err := s.ReadFile(filepath.Join(base, "notes.txt"), false)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, s.WriteBinaryFile("blob.bin", []byte{0, 1, 2}, true))
	data, err := s.ReadBinaryFile("blob.bin", false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)
}

func TestWriteFileWithoutCreateRequiresTarget(t *testing.T) {
	s, base := newTestService(t)

	err := s.WriteFile("missing.txt", "x", false)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(base, "missing.txt"))
}

func TestRenameAndMove(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "a")
	writeFile(t, filepath.Join(base, "dir", "inner.txt"), "inner")

	require.NoError(t, s.Rename("a.txt", "b.txt"))
	assert.NoFileExists(t, filepath.Join(base, "a.txt"))
	assert.FileExists(t, filepath.Join(base, "b.txt"))

	require.NoError(t, s.Move(context.Background(), "dir", "moved"))
	assert.NoDirExists(t, filepath.Join(base, "dir"))
	assert.FileExists(t, filepath.Join(base, "moved", "inner.txt"))
}

func TestRenameFailureKeepsSource(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "a")

	err := s.Rename("a.txt", "no/such/dir/b.txt")
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(base, "a.txt"))
}

func TestCopyFile(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "payload")

	require.NoError(t, s.CopyFile("a.txt", "b.txt"))

	data, err := os.ReadFile(filepath.Join(base, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.FileExists(t, filepath.Join(base, "a.txt"))
}

func TestCopyFileFailureLeavesNoPartialDestination(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "payload")

	err := s.CopyFile("a.txt", "missing-dir/b.txt")
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(base, "missing-dir"))

	data, err := os.ReadFile(filepath.Join(base, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCopyDirectory(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "src", "a.ini"), "a")
	writeFile(t, filepath.Join(base, "src", "textures", "b.dds"), "b")
	writeFile(t, filepath.Join(base, "src", "textures", "deep", "c.dds"), "c")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "src", "empty"), 0755))

	require.NoError(t, s.CopyDirectory(context.Background(), "src", "dst"))

	for rel, want := range map[string]string{
		"a.ini":               "a",
		"textures/b.dds":      "b",
		"textures/deep/c.dds": "c",
	} {
		data, err := os.ReadFile(filepath.Join(base, "dst", filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, string(data), rel)
	}
	assert.DirExists(t, filepath.Join(base, "dst", "empty"))
	assert.FileExists(t, filepath.Join(base, "src", "a.ini"))
}

func TestCopyDirectoryRejectsFile(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "a")

	require.Error(t, s.CopyDirectory(context.Background(), "a.txt", "dst"))
}

func TestCopyDirectoryIntoItself(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "mods", "a.ini"), "a")

	for _, dst := range []string{"mods", "mods/backup", "mods/backup/deeper"} {
		err := s.CopyDirectory(context.Background(), "mods", dst)
		require.Error(t, err, dst)
		assert.Contains(t, err.Error(), "into itself", dst)
	}
	assert.NoDirExists(t, filepath.Join(base, "mods", "backup"))

	require.NoError(t, s.CopyDirectory(context.Background(), "mods", "mods-backup"))
	assert.FileExists(t, filepath.Join(base, "mods-backup", "a.ini"))
}

// crossDevice makes every rename fail as if src and dst were on different devices
func crossDevice(t *testing.T) {
	t.Helper()
	orig := rename
	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	t.Cleanup(func() { rename = orig })
}

func TestMoveAcrossDevices(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "a")
	writeFile(t, filepath.Join(base, "dir", "sub", "inner.txt"), "inner")
	crossDevice(t)

	require.NoError(t, s.Move(context.Background(), "a.txt", "b.txt"))
	assert.NoFileExists(t, filepath.Join(base, "a.txt"))
	data, err := os.ReadFile(filepath.Join(base, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	require.NoError(t, s.Move(context.Background(), "dir", "moved"))
	assert.NoDirExists(t, filepath.Join(base, "dir"))
	data, err = os.ReadFile(filepath.Join(base, "moved", "sub", "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))
}

func TestMoveAcrossDevicesKeepsSourceOnFailure(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "a")
	writeFile(t, filepath.Join(base, "dir", "inner.txt"), "inner")
	writeFile(t, filepath.Join(base, "blocker"), "not a directory")
	crossDevice(t)

	tests := []struct {
		name     string
		src, dst string
		keep     string
	}{
		{"file into missing parent", "a.txt", "no/such/dir/a.txt", "a.txt"},
		{"directory below a file", "dir", "blocker/dir", "dir/inner.txt"},
		{"directory into itself", "dir", "dir/nested", "dir/inner.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, s.Move(context.Background(), tt.src, tt.dst))
			assert.FileExists(t, filepath.Join(base, filepath.FromSlash(tt.keep)))
		})
	}
}

func TestDeleteAndCreateDirectory(t *testing.T) {
	s, base := newTestService(t)

	require.NoError(t, s.CreateDirectory("mods/x/y"))
	assert.True(t, s.IsDirectoryExists("mods/x/y"))
	assert.False(t, s.IsFileExists("mods/x/y"))

	writeFile(t, filepath.Join(base, "mods", "x", "y", "f.txt"), "f")
	assert.True(t, s.IsFileExists("mods/x/y/f.txt"))

	require.NoError(t, s.DeleteFile("mods/x/y/f.txt"))
	assert.False(t, s.IsFileExists("mods/x/y/f.txt"))

	require.NoError(t, s.DeleteDirectory("mods"))
	assert.False(t, s.IsDirectoryExists("mods"))
}

func TestDirectoryList(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "mods", "a.txt"), "a")
	writeFile(t, filepath.Join(base, "mods", "b", "c.txt"), "c")

	got, err := s.DirectoryList("mods")
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{
		filepath.Join(base, "mods", "a.txt"),
		filepath.Join(base, "mods", "b"),
	}, got)

	_, err = s.DirectoryList("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory not found")
}

func TestFullPath(t *testing.T) {
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "a.txt"), "a")

	got, err := s.FullPath("a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "a.txt"), got)

	_, err = s.FullPath("b.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
}

func TestAppDataDir(t *testing.T) {
	s, base := newTestService(t)
	got, err := s.AppDataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "appdata"), got)

	_, err = NewService(NewResolver(base), "", 0).AppDataDir()
	require.Error(t, err)
}

func TestSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need developer mode on windows")
	}
	s, base := newTestService(t)
	writeFile(t, filepath.Join(base, "mods", "a.ini"), "a")

	assert.True(t, s.IsSymlinkSupported("mods"))
	assert.True(t, s.IsSymlinkSupported("mods/a.ini"))
	assert.False(t, s.IsSymlinkSupported("missing"))

	require.NoError(t, s.CreateSymlink("mods", "linked"))
	target, err := os.Readlink(filepath.Join(base, "linked"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "mods"), target)

	entries, err := os.ReadDir(filepath.Join(base, "mods"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "probe files must be cleaned up")
}

func TestEnsureDirectory(t *testing.T) {
	s, base := newTestService(t)

	resolved, err := s.EnsureDirectory("mods/new", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "mods", "new"), resolved)
	assert.DirExists(t, resolved)

	_, err = s.EnsureDirectory("mods/missing", false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoDirExists(t, filepath.Join(base, "mods", "missing"))
}
