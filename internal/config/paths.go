package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the directories the backend works with
type Paths struct {
	// ExeDir holds the running executable
	ExeDir string `json:"exeDir"`
	// DataDir holds config, state and logs
	DataDir string `json:"dataDir"`
	// BaseDir resolves relative frontend paths
	BaseDir string `json:"baseDir"`
}

// executable is swapped by tests
var executable = os.Executable

// ExecutableDir returns the directory of the running binary
func ExecutableDir() (string, error) {
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// DataDir returns the per-user data directory, or <exe dir>/config when
// the external config folder is requested.
func DataDir(customConfigFolder bool) (string, error) {
	if customConfigFolder {
		exeDir, err := ExecutableDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(exeDir, "config"), nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// ResolvePaths computes every directory and creates the data directory
func ResolvePaths(cfg *Config, customConfigFolder bool) (*Paths, error) {
	exeDir, err := ExecutableDir()
	if err != nil {
		return nil, err
	}
	dataDir, err := DataDir(customConfigFolder)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	baseDir := exeDir
	if cfg != nil && cfg.BaseDir != "" {
		baseDir = cfg.BaseDir
		if !filepath.IsAbs(baseDir) {
			baseDir = filepath.Join(exeDir, baseDir)
		}
	}

	return &Paths{ExeDir: exeDir, DataDir: dataDir, BaseDir: baseDir}, nil
}
