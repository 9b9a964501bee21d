package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xxmm/internal/logging"

	"github.com/samber/lo"
)

// FileName is the state file inside the data directory
const FileName = "state.json"

// saveDelay debounces bursts of state changes
const saveDelay = 500 * time.Millisecond

// Manager manages the persisted application state
type Manager struct {
	state     *AppState
	statePath string
	mu        sync.RWMutex

	// Debounced save
	saveTimer *time.Timer
	saveMu    sync.Mutex

	// serialises writes of the state file
	writeMu sync.Mutex
}

// NewManager loads dataDir/state.json, starting empty when it is missing or unreadable
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		state:     NewAppState(),
		statePath: filepath.Join(dataDir, FileName),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the state file path
func (m *Manager) Path() string {
	return m.statePath
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	var st AppState
	if err := json.Unmarshal(data, &st); err != nil {
		// Keep the broken file for inspection and start over
		backup := m.statePath + ".broken"
		logging.Warn("State file is corrupt, starting fresh", "backup", logging.MaskPath(backup), "error", err)
		os.Rename(m.statePath, backup)
		return nil
	}

	if st.RecentDirectories == nil {
		st.RecentDirectories = []string{}
	}
	if st.WatchedDirectories == nil {
		st.WatchedDirectories = []string{}
	}
	if st.Version == 0 {
		st.Version = CurrentVersion
	}
	m.state = &st
	return nil
}

func (m *Manager) saveImmediate() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	m.state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(m.state, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.statePath), FileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, m.statePath); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Save triggers a debounced save
func (m *Manager) Save() {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(saveDelay, func() {
		if err := m.saveImmediate(); err != nil {
			logging.Error("Failed to save state", "error", err)
		}
	})
}

// SaveSync immediately saves state (for shutdown)
func (m *Manager) SaveSync() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	m.saveMu.Unlock()

	return m.saveImmediate()
}

// GetState returns a copy of the app state
func (m *Manager) GetState() AppState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := *m.state
	if m.state.Window != nil {
		w := *m.state.Window
		st.Window = &w
	}
	st.RecentDirectories = append([]string{}, m.state.RecentDirectories...)
	st.WatchedDirectories = append([]string{}, m.state.WatchedDirectories...)
	return st
}

// GetWindowState returns the saved window state
func (m *Manager) GetWindowState() *WindowState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Window == nil {
		return nil
	}
	w := *m.state.Window
	return &w
}

// SetWindowState saves the window state
func (m *Manager) SetWindowState(ws *WindowState) {
	m.mu.Lock()
	m.state.Window = ws
	m.mu.Unlock()
	m.Save()
}

// GetLastPage returns the last page the frontend reported
func (m *Manager) GetLastPage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.LastPage
}

// SetLastPage records the page the frontend is showing
func (m *Manager) SetLastPage(page string) {
	m.mu.Lock()
	changed := m.state.LastPage != page
	m.state.LastPage = page
	m.mu.Unlock()
	if changed {
		m.Save()
	}
}

// AddRecentDirectory moves dir to the front of the recent list
func (m *Manager) AddRecentDirectory(dir string) {
	if dir == "" {
		return
	}
	m.mu.Lock()
	recent := append([]string{dir}, lo.Without(m.state.RecentDirectories, dir)...)
	if len(recent) > MaxRecentDirectories {
		recent = recent[:MaxRecentDirectories]
	}
	m.state.RecentDirectories = recent
	m.mu.Unlock()
	m.Save()
}

// GetRecentDirectories returns the recent directories, newest first
func (m *Manager) GetRecentDirectories() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.state.RecentDirectories...)
}

// AddWatchedDirectory records dir to be watched again on startup
func (m *Manager) AddWatchedDirectory(dir string) {
	m.mu.Lock()
	if lo.Contains(m.state.WatchedDirectories, dir) {
		m.mu.Unlock()
		return
	}
	m.state.WatchedDirectories = append(m.state.WatchedDirectories, dir)
	m.mu.Unlock()
	m.Save()
}

// RemoveWatchedDirectory forgets dir
func (m *Manager) RemoveWatchedDirectory(dir string) {
	m.mu.Lock()
	m.state.WatchedDirectories = lo.Without(m.state.WatchedDirectories, dir)
	m.mu.Unlock()
	m.Save()
}

// GetWatchedDirectories returns the directories to watch on startup
func (m *Manager) GetWatchedDirectories() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.state.WatchedDirectories...)
}
