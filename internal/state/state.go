package state

import "time"

// CurrentVersion is the state file format version
const CurrentVersion = 1

// MaxRecentDirectories bounds the recent directory list
const MaxRecentDirectories = 10

// WindowState is the saved main window geometry
type WindowState struct {
	X         int  `json:"x"`
	Y         int  `json:"y"`
	Width     int  `json:"width"`
	Height    int  `json:"height"`
	Maximized bool `json:"maximized"`
}

// AppState represents the persisted application state
type AppState struct {
	Version int          `json:"version"`
	Window  *WindowState `json:"window,omitempty"`
	// LastPage is the page the frontend last reported
	LastPage string `json:"lastPage"`
	// RecentDirectories are directories picked in dialogs, newest first
	RecentDirectories []string `json:"recentDirectories"`
	// WatchedDirectories are re-watched on startup
	WatchedDirectories []string  `json:"watchedDirectories"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NewAppState creates a new empty app state
func NewAppState() *AppState {
	return &AppState{
		Version:            CurrentVersion,
		RecentDirectories:  []string{},
		WatchedDirectories: []string{},
	}
}
