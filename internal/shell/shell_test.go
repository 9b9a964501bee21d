package shell

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeShell struct {
	urls  []string
	files []string
	calls []call
}

func newFake() (*Shell, *fakeShell) {
	f := &fakeShell{}
	s := &Shell{
		openURL:  func(u string) error { f.urls = append(f.urls, u); return nil },
		openFile: func(p string) error { f.files = append(f.files, p); return nil },
		start: func(name string, args ...string) error {
			f.calls = append(f.calls, call{name: name, args: args})
			return nil
		},
	}
	return s, f
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://gamebanana.com/mods/1", true},
		{"http://localhost:8080", true},
		{"HTTPS://example.com", true},
		{"mailto:someone@example.com", true},
		{"file:///etc/passwd", false},
		{"javascript:alert(1)", false},
		{"https://", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := ValidateURL(tt.url)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidURL)
			}
		})
	}
}

func TestOpenURLRejectsBeforeOpening(t *testing.T) {
	s, f := newFake()

	require.Error(t, s.OpenURL("ftp://example.com"))
	assert.Empty(t, f.urls)

	require.NoError(t, s.OpenURL("https://example.com/a"))
	assert.Equal(t, []string{"https://example.com/a"}, f.urls)
}

func TestOpenChecksKind(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mod.ini")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	s, f := newFake()

	require.NoError(t, s.OpenFile(file))
	assert.Equal(t, []string{file}, f.files)

	assert.Error(t, s.OpenFile(dir))
	assert.Error(t, s.OpenFile(filepath.Join(dir, "missing")))
	assert.Error(t, s.OpenDirectory(file))
	assert.Error(t, s.RevealFile(dir))
	assert.Error(t, s.RevealDirectory(filepath.Join(dir, "missing")))
}

func TestOpenerErrorPassesThrough(t *testing.T) {
	s, _ := newFake()
	boom := errors.New("boom")
	s.openURL = func(string) error { return boom }

	assert.ErrorIs(t, s.OpenURL("https://example.com"), boom)
}
