package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the per-user directories
	AppName = "XXMM"

	// FileName is the config file name without extension
	FileName = "config"

	// FileExt is the config file format
	FileExt = "toml"

	// EnvPrefix prefixes environment overrides: XXMM_DOWNLOAD_TIMEOUT_MS
	EnvPrefix = "XXMM"

	// DefaultUserAgent is sent with every download
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) XX-Mod-Manager-Tauri/0.1.9"

	DefaultDownloadTimeoutMs = 30000
	DefaultCopyWorkers       = 4
	DefaultRelayPort         = 17321
	DefaultLogMaxAgeHours    = 72
	DefaultWatchDebounceMs   = 300
)

// Config is the backend configuration
type Config struct {
	// BaseDir resolves relative paths from the frontend. Empty means the
	// directory holding the executable.
	BaseDir  string         `toml:"base_dir" mapstructure:"base_dir"`
	Download DownloadConfig `toml:"download" mapstructure:"download"`
	Copy     CopyConfig     `toml:"copy" mapstructure:"copy"`
	Relay    RelayConfig    `toml:"relay" mapstructure:"relay"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`
	Watch    WatchConfig    `toml:"watch" mapstructure:"watch"`
}

// DownloadConfig configures HTTP downloads
type DownloadConfig struct {
	TimeoutMs int    `toml:"timeout_ms" mapstructure:"timeout_ms"`
	UserAgent string `toml:"user_agent" mapstructure:"user_agent"`
}

// CopyConfig configures directory copies
type CopyConfig struct {
	Workers int `toml:"workers" mapstructure:"workers"`
}

// RelayConfig configures the local event relay
type RelayConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
	Port    int  `toml:"port" mapstructure:"port"`
}

// LogConfig configures the log files
type LogConfig struct {
	JSON        bool `toml:"json" mapstructure:"json"`
	MaxAgeHours int  `toml:"max_age_hours" mapstructure:"max_age_hours"`
}

// WatchConfig configures directory watching
type WatchConfig struct {
	DebounceMs int `toml:"debounce_ms" mapstructure:"debounce_ms"`
}

// DownloadTimeout returns the timeout as a duration
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutMs) * time.Millisecond
}

// LogMaxAge returns the log retention as a duration
func (c *Config) LogMaxAge() time.Duration {
	return time.Duration(c.Log.MaxAgeHours) * time.Hour
}

// WatchDebounce returns the watch debounce as a duration
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Download: DownloadConfig{
			TimeoutMs: DefaultDownloadTimeoutMs,
			UserAgent: DefaultUserAgent,
		},
		Copy:  CopyConfig{Workers: DefaultCopyWorkers},
		Relay: RelayConfig{Enabled: true, Port: DefaultRelayPort},
		Log:   LogConfig{JSON: true, MaxAgeHours: DefaultLogMaxAgeHours},
		Watch: WatchConfig{DebounceMs: DefaultWatchDebounceMs},
	}
}

// ValidationError lists the values that were replaced by defaults
type ValidationError struct {
	Warnings []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Warnings, "; ")
}

// Validate resets invalid values to defaults and reports what it changed
func (c *Config) Validate() *ValidationError {
	var warnings []string
	def := DefaultConfig()

	if c.Download.TimeoutMs <= 0 {
		warnings = append(warnings, fmt.Sprintf("invalid download timeout %dms, using default %d", c.Download.TimeoutMs, def.Download.TimeoutMs))
		c.Download.TimeoutMs = def.Download.TimeoutMs
	}
	if strings.TrimSpace(c.Download.UserAgent) == "" {
		warnings = append(warnings, "empty user agent, using default")
		c.Download.UserAgent = def.Download.UserAgent
	}
	if c.Copy.Workers < 1 || c.Copy.Workers > 64 {
		warnings = append(warnings, fmt.Sprintf("invalid copy workers %d (must be 1-64), using default %d", c.Copy.Workers, def.Copy.Workers))
		c.Copy.Workers = def.Copy.Workers
	}
	if c.Relay.Port < 1024 || c.Relay.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("invalid relay port %d (must be 1024-65535), using default %d", c.Relay.Port, def.Relay.Port))
		c.Relay.Port = def.Relay.Port
	}
	if c.Log.MaxAgeHours < 1 {
		warnings = append(warnings, fmt.Sprintf("invalid log max age %dh, using default %d", c.Log.MaxAgeHours, def.Log.MaxAgeHours))
		c.Log.MaxAgeHours = def.Log.MaxAgeHours
	}
	if c.Watch.DebounceMs < 0 {
		warnings = append(warnings, fmt.Sprintf("invalid watch debounce %dms, using default %d", c.Watch.DebounceMs, def.Watch.DebounceMs))
		c.Watch.DebounceMs = def.Watch.DebounceMs
	}

	if len(warnings) > 0 {
		return &ValidationError{Warnings: warnings}
	}
	return nil
}

// Load reads dir/config.toml with XXMM_* environment overrides. A missing
// file is created with defaults. Invalid values are replaced and reported
// through the returned ValidationError, which is never fatal.
func Load(dir string) (*Config, *ValidationError, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("base_dir", def.BaseDir)
	v.SetDefault("download.timeout_ms", def.Download.TimeoutMs)
	v.SetDefault("download.user_agent", def.Download.UserAgent)
	v.SetDefault("copy.workers", def.Copy.Workers)
	v.SetDefault("relay.enabled", def.Relay.Enabled)
	v.SetDefault("relay.port", def.Relay.Port)
	v.SetDefault("log.json", def.Log.JSON)
	v.SetDefault("log.max_age_hours", def.Log.MaxAgeHours)
	v.SetDefault("watch.debounce_ms", def.Watch.DebounceMs)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(dir, FileName+"."+FileExt)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, cfg.Validate(), nil
}

// WriteDefault writes the default configuration as TOML to path
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
