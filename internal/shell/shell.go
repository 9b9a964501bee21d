package shell

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"xxmm/internal/logging"

	"github.com/pkg/browser"
)

var (
	// ErrUnsupported is returned when the platform has no backend for an action
	ErrUnsupported = errors.New("not supported on this platform")

	// ErrInvalidURL is returned for URLs the shell refuses to open
	ErrInvalidURL = errors.New("invalid url")
)

// AllowedSchemes lists the URL schemes OpenURL accepts
var AllowedSchemes = []string{"http", "https", "mailto"}

// Opener hands paths and URLs to the operating system
type Opener interface {
	OpenFile(path string) error
	OpenDirectory(path string) error
	OpenURL(rawURL string) error
	RevealFile(path string) error
	RevealDirectory(path string) error
}

// Shell is the Opener for the current platform
type Shell struct {
	openURL  func(string) error
	openFile func(string) error
	start    func(name string, args ...string) error
}

// New returns the platform shell
func New() *Shell {
	return &Shell{
		openURL:  browser.OpenURL,
		openFile: browser.OpenFile,
		start:    startDetached,
	}
}

// startDetached starts a helper process and reaps it in the background
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

// ValidateURL checks that rawURL is absolute and uses an allowed scheme
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range AllowedSchemes {
		if scheme == s {
			if s != "mailto" && u.Host == "" {
				return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
			}
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
}

func requireKind(path string, dir bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path not found: %s", path)
	}
	if dir && !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	if !dir && info.IsDir() {
		return fmt.Errorf("not a file: %s", path)
	}
	return nil
}

// OpenURL opens rawURL in the default browser
func (s *Shell) OpenURL(rawURL string) error {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return err
	}
	logging.Debug("Opening URL", "scheme", u.Scheme, "host", u.Host)
	return s.openURL(u.String())
}

// OpenFile opens path with its default application
func (s *Shell) OpenFile(path string) error {
	if err := requireKind(path, false); err != nil {
		return err
	}
	logging.Debug("Opening file", "path", logging.MaskPath(path))
	return s.openFile(path)
}

// OpenDirectory opens path in the file manager
func (s *Shell) OpenDirectory(path string) error {
	if err := requireKind(path, true); err != nil {
		return err
	}
	logging.Debug("Opening directory", "path", logging.MaskPath(path))
	return s.openDirectory(path)
}

// RevealFile shows path selected in the file manager
func (s *Shell) RevealFile(path string) error {
	if err := requireKind(path, false); err != nil {
		return err
	}
	logging.Debug("Revealing file", "path", logging.MaskPath(path))
	return s.revealFile(path)
}

// RevealDirectory shows path in the file manager
func (s *Shell) RevealDirectory(path string) error {
	if err := requireKind(path, true); err != nil {
		return err
	}
	logging.Debug("Revealing directory", "path", logging.MaskPath(path))
	return s.revealDirectory(path)
}
