package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultMaxAge is how long dated log files are kept (3 days)
	DefaultMaxAge = 3 * 24 * time.Hour

	// DefaultPrefix names the log files: xxmm.2024-01-23.log
	DefaultPrefix = "xxmm"

	// DirPermissions for log directory (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions for log files (rw-r--r--)
	FilePermissions = 0644

	// MaxMessageLength caps frontend log messages
	MaxMessageLength = 10000

	// MaxDataSize caps the number of keys in a frontend data map
	MaxDataSize = 50

	// MaxDataValueLength caps individual string values in a data map
	MaxDataValueLength = 1000

	dateLayout = "2006-01-02"
)

// SensitiveKeys that should be redacted from logs
var SensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "access_token", "refresh_token", "auth_token",
	"secret", "client_secret",
	"api_key", "apikey", "api-key",
	"authorization", "auth",
	"credential", "credentials",
	"cookie", "cookies",
	"session", "sessionid", "session_id",
}

// ValidLogLevels maps accepted frontend levels onto slog levels
var ValidLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var (
	defaultLogger *slog.Logger
	fileHandler   *RotatingFileHandler
	loggerMu      sync.RWMutex
	devMode       atomic.Bool
	level         = new(slog.LevelVar)
)

// Config holds logger configuration
type Config struct {
	Dir        string        // Directory for log files
	Prefix     string        // File name prefix
	MaxAge     time.Duration // Dated files older than this are removed
	JSONOutput bool          // JSON lines instead of text
	DevMode    bool          // Mirror to stdout and log at debug level
}

// DefaultConfig returns the configuration for logs kept under dataDir
func DefaultConfig(dataDir string) Config {
	return Config{
		Dir:        filepath.Join(dataDir, "logs"),
		Prefix:     DefaultPrefix,
		MaxAge:     DefaultMaxAge,
		JSONOutput: true,
	}
}

// IsDevMode returns whether the logger is in development mode
func IsDevMode() bool {
	return devMode.Load()
}

// SetLevel changes the minimum level at runtime
func SetLevel(l slog.Level) {
	level.Set(l)
}

// RotatingFileHandler writes to one file per day and prunes old ones
type RotatingFileHandler struct {
	dir     string
	prefix  string
	maxAge  time.Duration
	file    *os.File
	date    string
	mu      sync.Mutex
	pruning atomic.Bool
	now     func() time.Time
}

// NewRotatingFileHandler opens today's log file in dir
func NewRotatingFileHandler(dir, prefix string, maxAge time.Duration) (*RotatingFileHandler, error) {
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return nil, err
	}

	h := &RotatingFileHandler{
		dir:    dir,
		prefix: prefix,
		maxAge: maxAge,
		now:    time.Now,
	}
	if err := h.openFor(h.now().Format(dateLayout)); err != nil {
		return nil, err
	}
	return h, nil
}

// Write implements io.Writer, switching files when the date changes
func (h *RotatingFileHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if today := h.now().Format(dateLayout); today != h.date {
		if err := h.openFor(today); err != nil {
			return 0, err
		}
		if h.pruning.CompareAndSwap(false, true) {
			cutoff := h.now().Add(-h.maxAge)
			go func() {
				defer h.pruning.Store(false)
				h.prune(cutoff)
			}()
		}
	}
	return h.file.Write(p)
}

func (h *RotatingFileHandler) openFor(date string) error {
	if h.file != nil {
		h.file.Close()
	}

	name := filepath.Join(h.dir, fmt.Sprintf("%s.%s.log", h.prefix, date))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, FilePermissions)
	if err != nil {
		return err
	}
	h.file = f
	h.date = date

	// prefix.log always points at the current file; best effort only
	link := filepath.Join(h.dir, h.prefix+".log")
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove log symlink", "path", link, "error", err)
	}
	if err := os.Symlink(name, link); err != nil {
		slog.Debug("Failed to create log symlink", "path", link, "error", err)
	}
	return nil
}

// prune removes dated log files last written before cutoff
func (h *RotatingFileHandler) prune(cutoff time.Time) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		slog.Warn("Failed to read log directory for cleanup", "dir", h.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name(), h.prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove old log file", "path", path, "error", err)
		}
	}
}

// isLogFile matches prefix.YYYY-MM-DD.log and rejects the prefix.log symlink
func isLogFile(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix+".") || !strings.HasSuffix(name, ".log") {
		return false
	}
	date := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"."), ".log")
	if len(date) != len(dateLayout) {
		return false
	}
	_, err := time.Parse(dateLayout, date)
	return err == nil
}

// Close closes the current file
func (h *RotatingFileHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}

// Init installs the global logger described by cfg
func Init(cfg Config) error {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}

	fh, err := NewRotatingFileHandler(cfg.Dir, cfg.Prefix, cfg.MaxAge)
	if err != nil {
		return err
	}

	var out io.Writer = fh
	if cfg.DevMode {
		out = io.MultiWriter(fh, os.Stdout)
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	devMode.Store(cfg.DevMode)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.JSONOutput {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	loggerMu.Lock()
	if fileHandler != nil {
		fileHandler.Close()
	}
	fileHandler = fh
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
	loggerMu.Unlock()

	return nil
}

// Close flushes and closes the log file
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if fileHandler == nil {
		return nil
	}
	err := fileHandler.Close()
	fileHandler = nil
	return err
}

// Logger returns the default logger
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// MaskPath replaces the home directory prefix with ~
func MaskPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if rest, ok := strings.CutPrefix(path, home); ok {
		return "~" + rest
	}
	return path
}
