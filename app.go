package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"xxmm/internal/cli"
	"xxmm/internal/config"
	"xxmm/internal/dialog"
	"xxmm/internal/download"
	"xxmm/internal/events"
	"xxmm/internal/fsops"
	"xxmm/internal/launcher"
	"xxmm/internal/logging"
	"xxmm/internal/readiness"
	"xxmm/internal/relay"
	"xxmm/internal/shell"
	"xxmm/internal/state"
	"xxmm/internal/watch"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// progressInterval throttles download-progress events
const progressInterval = 200 * time.Millisecond

// App struct
type App struct {
	ctx          context.Context
	args         *cli.Args
	cfg          *config.Config
	paths        *config.Paths
	bus          *events.Bus
	gate         *readiness.Gate
	files        *fsops.Service
	downloader   *download.Downloader
	opener       shell.Opener
	launcher     *launcher.Manager
	relayServer  *relay.Server
	watcher      *watch.Watcher
	stateManager *state.Manager
	dialogs      dialog.Runtime
}

// NewApp creates a new App
func NewApp(args *cli.Args, cfg *config.Config, paths *config.Paths) *App {
	bus := events.NewBus()
	return &App{
		ctx:   context.Background(),
		args:  args,
		cfg:   cfg,
		paths: paths,
		bus:   bus,
		gate:  readiness.NewGate(bus),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.bus.Attach("runtime", events.NewRuntimeEmitter(ctx))
	a.dialogs = dialog.NewWailsRuntime(ctx)

	a.initServices()

	// Restore window state after a short delay (needs window to be ready)
	const windowReadyDelay = 150 * time.Millisecond
	go func() {
		time.Sleep(windowReadyDelay)
		a.restoreWindowState()
	}()

	logging.Info("Backend ready", "baseDir", logging.MaskPath(a.paths.BaseDir), "dataDir", logging.MaskPath(a.paths.DataDir))
	a.gate.SignalBackendReady()
}

// initServices builds every backend service. Optional services that fail
// to start are logged and left nil.
func (a *App) initServices() {
	a.files = fsops.NewService(fsops.NewResolver(a.paths.BaseDir), a.paths.DataDir, a.cfg.Copy.Workers)
	a.downloader = download.New(a.cfg.Download.UserAgent, a.cfg.DownloadTimeout())
	a.opener = shell.New()

	a.launcher = launcher.NewManager()
	a.launcher.SetOutputHandler(a.onProgramOutput)
	a.launcher.SetExitHandler(a.onProgramExit)

	stateMgr, err := state.NewManager(a.paths.DataDir)
	if err != nil {
		logging.Error("Failed to initialize state manager", "error", err)
	} else {
		a.stateManager = stateMgr
	}

	watcher, err := watch.New(a.bus, a.cfg.WatchDebounce())
	if err != nil {
		logging.Warn("Directory watching not available", "error", err)
	} else {
		a.watcher = watcher
		a.restoreWatches()
	}

	if a.cfg.Relay.Enabled {
		a.startRelay()
	}
}

func (a *App) startRelay() {
	srv, err := relay.NewServer()
	if err != nil {
		logging.Error("Failed to create relay", "error", err)
		return
	}
	srv.SetSnackHandler(func(n events.Notification) {
		events.EmitSnack(a.bus, n)
	})
	if err := srv.Start(a.cfg.Relay.Port); err != nil {
		logging.Warn("Relay not started", "port", a.cfg.Relay.Port, "error", err)
		return
	}
	if _, err := srv.WriteInfo(a.paths.DataDir); err != nil {
		logging.Warn("Failed to write relay info", "error", err)
	}
	a.relayServer = srv
	a.bus.Attach("relay", srv)
}

func (a *App) restoreWatches() {
	if a.stateManager == nil {
		return
	}
	for _, dir := range a.stateManager.GetWatchedDirectories() {
		if err := a.watcher.Watch(dir, true); err != nil {
			logging.Warn("Dropping watched directory", "path", logging.MaskPath(dir), "error", err)
			a.stateManager.RemoveWatchedDirectory(dir)
		}
	}
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	a.saveWindowState()
	a.closeServices()
	logging.Info("Application stopped")
	logging.Close()
}

func (a *App) closeServices() {
	if a.launcher != nil {
		a.launcher.CloseAll()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.relayServer != nil {
		a.bus.Detach("relay")
		a.relayServer.Stop()
		relay.RemoveInfo(a.paths.DataDir)
	}
	if a.stateManager != nil {
		if err := a.stateManager.SaveSync(); err != nil {
			logging.Error("Failed to save state", "error", err)
		}
	}
}

// Window position bounds for validation (supports multi-monitor setups)
const (
	minWindowX      = -5000 // Allow negative for left-side monitors
	maxWindowX      = 10000
	minWindowY      = -5000
	maxWindowY      = 10000
	minWindowWidth  = 400
	minWindowHeight = 300
)

// validWindowState reports whether the saved position and size can be applied
func validWindowState(ws *state.WindowState) (positionValid, sizeValid bool) {
	positionValid = ws.X >= minWindowX && ws.X <= maxWindowX &&
		ws.Y >= minWindowY && ws.Y <= maxWindowY
	sizeValid = ws.Width >= minWindowWidth && ws.Height >= minWindowHeight
	return positionValid, sizeValid
}

// restoreWindowState restores the window position and size from saved state
func (a *App) restoreWindowState() {
	if a.stateManager == nil {
		return
	}

	ws := a.stateManager.GetWindowState()
	if ws == nil {
		logging.Debug("No window state to restore")
		return
	}

	if ws.Maximized {
		runtime.WindowMaximise(a.ctx)
		logging.Info("Window state restored (maximized)")
		return
	}

	positionValid, sizeValid := validWindowState(ws)
	if positionValid {
		runtime.WindowSetPosition(a.ctx, ws.X, ws.Y)
	} else {
		logging.Warn("Skipping window position restore - out of bounds", "x", ws.X, "y", ws.Y)
	}
	if sizeValid {
		runtime.WindowSetSize(a.ctx, ws.Width, ws.Height)
	} else {
		logging.Warn("Skipping window size restore - invalid", "width", ws.Width, "height", ws.Height)
	}

	logging.Info("Window state restored", "x", ws.X, "y", ws.Y, "width", ws.Width, "height", ws.Height)
}

// saveWindowState saves the current window position and size
func (a *App) saveWindowState() {
	if a.stateManager == nil {
		return
	}

	maximized := runtime.WindowIsMaximised(a.ctx)

	var x, y, width, height int
	if existing := a.stateManager.GetWindowState(); maximized && existing != nil && !existing.Maximized {
		// Keep the previous non-maximized geometry
		x, y = existing.X, existing.Y
		width, height = existing.Width, existing.Height
	} else {
		x, y = runtime.WindowGetPosition(a.ctx)
		width, height = runtime.WindowGetSize(a.ctx)
	}

	a.stateManager.SetWindowState(&state.WindowState{
		X:         x,
		Y:         y,
		Width:     width,
		Height:    height,
		Maximized: maximized,
	})
	logging.Info("Window state saved", "x", x, "y", y, "width", width, "height", height, "maximized", maximized)
}

// Program output/exit handlers - emit events to frontend
func (a *App) onProgramOutput(id string, data []byte) {
	a.bus.Emit(events.ProgramOutput, map[string]interface{}{
		"id":   id,
		"data": base64.StdEncoding.EncodeToString(data),
	})
}

func (a *App) onProgramExit(id string, code int) {
	a.bus.Emit(events.ProgramExit, map[string]interface{}{
		"id":   id,
		"code": code,
	})
}

func (a *App) resolve(path string) string {
	return a.files.Resolver().Resolve(path)
}

// ============================================
// Readiness and notifications
// ============================================

// MainWindowReady is called by the frontend once its window has loaded
func (a *App) MainWindowReady() {
	logging.Info("Main window ready")
	a.gate.SignalFrontendReady()
}

// Snack relays a notification to every listener
func (a *App) Snack(message, snackType string, duration uint64, align string) error {
	if message == "" {
		return errors.New("message required")
	}
	events.EmitSnack(a.bus, events.NewNotification(message, snackType, duration, align))
	return nil
}

// GetCommandLineArgs returns the parsed command line
func (a *App) GetCommandLineArgs() cli.Args {
	return *a.args
}

// Log receives log messages from the frontend and routes them through the centralized logger
func (a *App) Log(level, module, message string, data map[string]interface{}) {
	logging.LogFromFrontend(logging.LogEntry{
		Level:   level,
		Module:  module,
		Message: message,
		Data:    data,
	})
}

// IsDevMode returns whether the application is running in development mode
func (a *App) IsDevMode() bool {
	return a.args.DevMode || logging.IsDevMode()
}

// ============================================
// Files
// ============================================

// GetAppDataDir returns the application data directory
func (a *App) GetAppDataDir() (string, error) {
	return a.files.AppDataDir()
}

// ReadFile reads a text file. A missing file is created empty when
// ifCreate is set, otherwise a .notfound marker is left next to it.
func (a *App) ReadFile(path string, ifCreate bool) (string, error) {
	return a.files.ReadFile(path, ifCreate)
}

// WriteFile writes a text file
func (a *App) WriteFile(path, content string, ifCreate bool) error {
	return a.files.WriteFile(path, content, ifCreate)
}

// ReadBinaryFile reads a file as bytes
func (a *App) ReadBinaryFile(path string, ifCreate bool) ([]byte, error) {
	return a.files.ReadBinaryFile(path, ifCreate)
}

// WriteBinaryFile writes bytes to a file
func (a *App) WriteBinaryFile(path string, data []byte, ifCreate bool) error {
	return a.files.WriteBinaryFile(path, data, ifCreate)
}

// RenameFile renames a file
func (a *App) RenameFile(oldPath, newPath string) error {
	return a.files.Rename(oldPath, newPath)
}

// RenameDirectory renames a directory
func (a *App) RenameDirectory(oldPath, newPath string) error {
	return a.files.Rename(oldPath, newPath)
}

// MoveFile moves a file, across devices if needed
func (a *App) MoveFile(oldPath, newPath string) error {
	return a.files.Move(a.ctx, oldPath, newPath)
}

// MoveDirectory moves a directory, across devices if needed
func (a *App) MoveDirectory(oldPath, newPath string) error {
	return a.files.Move(a.ctx, oldPath, newPath)
}

// CopyFile copies a file
func (a *App) CopyFile(oldPath, newPath string) error {
	return a.files.CopyFile(oldPath, newPath)
}

// CopyDirectory copies a directory tree
func (a *App) CopyDirectory(oldPath, newPath string) error {
	return a.files.CopyDirectory(a.ctx, oldPath, newPath)
}

// DeleteFile removes a file
func (a *App) DeleteFile(path string) error {
	return a.files.DeleteFile(path)
}

// CreateDirectory creates a directory and its parents
func (a *App) CreateDirectory(path string) error {
	return a.files.CreateDirectory(path)
}

// DeleteDirectory removes a directory recursively
func (a *App) DeleteDirectory(path string) error {
	return a.files.DeleteDirectory(path)
}

// IsFileExists reports whether a regular file exists at path
func (a *App) IsFileExists(path string) bool {
	return a.files.IsFileExists(path)
}

// IsDirectoryExists reports whether a directory exists at path
func (a *App) IsDirectoryExists(path string) bool {
	return a.files.IsDirectoryExists(path)
}

// GetDirectoryList lists the full paths inside a directory
func (a *App) GetDirectoryList(path string) ([]string, error) {
	return a.files.DirectoryList(path)
}

// GetFullPath resolves path against the base directory
func (a *App) GetFullPath(path string) (string, error) {
	return a.files.FullPath(path)
}

// CreateSymlink creates link pointing at target
func (a *App) CreateSymlink(target, link string) error {
	return a.files.CreateSymlink(target, link)
}

// IsSymlinkSupported probes whether links can be created at path
func (a *App) IsSymlinkSupported(path string) bool {
	return a.files.IsSymlinkSupported(path)
}

// ============================================
// Downloads
// ============================================

func (a *App) downloadOptions(url string, timeoutMs int) (string, download.Options) {
	id := uuid.New().String()
	opts := download.Options{
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
		OnProgress: download.Throttle(progressInterval, func(p download.Progress) {
			a.bus.Emit(events.DownloadProgress, map[string]interface{}{
				"id":       id,
				"url":      url,
				"received": p.Received,
				"total":    p.Total,
			})
		}),
	}
	return id, opts
}

// DownloadFileToPath downloads url to savePath. A timeoutMs of 0 uses the configured timeout.
func (a *App) DownloadFileToPath(url, savePath string, timeoutMs int) error {
	dest := a.resolve(savePath)
	id, opts := a.downloadOptions(url, timeoutMs)
	logging.Info("Downloading file", "id", id, "url", url, "path", logging.MaskPath(dest))

	if _, err := a.downloader.ToFile(a.ctx, url, dest, opts); err != nil {
		logging.Warn("Download failed", "id", id, "url", url, "error", err)
		return err
	}
	return nil
}

// DownloadFileToBinary downloads url into memory
func (a *App) DownloadFileToBinary(url string, timeoutMs int) ([]byte, error) {
	id, opts := a.downloadOptions(url, timeoutMs)
	logging.Info("Downloading to memory", "id", id, "url", url)

	data, err := a.downloader.ToBytes(a.ctx, url, opts)
	if err != nil {
		logging.Warn("Download failed", "id", id, "url", url, "error", err)
		return nil, err
	}
	return data, nil
}

// ============================================
// Shell
// ============================================

// OpenFileWithDefaultApp opens a file with its associated application
func (a *App) OpenFileWithDefaultApp(path string) error {
	return a.opener.OpenFile(a.resolve(path))
}

// OpenDirectoryWithDefaultApp opens a directory in the file manager
func (a *App) OpenDirectoryWithDefaultApp(path string) error {
	return a.opener.OpenDirectory(a.resolve(path))
}

// OpenURLWithDefaultBrowser opens an http, https or mailto URL
func (a *App) OpenURLWithDefaultBrowser(url string) error {
	return a.opener.OpenURL(url)
}

// ShowFileInExplorer reveals a file in the file manager
func (a *App) ShowFileInExplorer(path string) error {
	return a.opener.RevealFile(a.resolve(path))
}

// ShowDirectoryInExplorer reveals a directory, creating it first when ifCreate is set
func (a *App) ShowDirectoryInExplorer(path string, ifCreate bool) error {
	resolved, err := a.files.EnsureDirectory(path, ifCreate)
	if err != nil {
		return err
	}
	return a.opener.RevealDirectory(resolved)
}

// ============================================
// Programs
// ============================================

// OpenProgram starts an executable. args is split on whitespace, hide
// suppresses the console window and uac requests elevation (Windows only).
func (a *App) OpenProgram(path, args string, hide, uac bool) (launcher.ProgramInfo, error) {
	return a.launcher.Launch(a.resolve(path), launcher.Options{
		Args:    args,
		Hide:    hide,
		Elevate: uac,
	})
}

// RunProgramCaptured starts an executable and streams its output as program-output events
func (a *App) RunProgramCaptured(path, args string) (launcher.ProgramInfo, error) {
	return a.launcher.Launch(a.resolve(path), launcher.Options{
		Args:    args,
		Hide:    true,
		Capture: true,
	})
}

// ListPrograms returns the programs started this session
func (a *App) ListPrograms() []launcher.ProgramInfo {
	return a.launcher.List()
}

// KillProgram terminates a started program
func (a *App) KillProgram(id string) error {
	return a.launcher.Kill(id)
}

// ============================================
// Dialogs
// ============================================

// OpenFileDialog shows a native picker. Cancelling returns null.
func (a *App) OpenFileDialog(opts dialog.Options) ([]string, error) {
	if a.dialogs == nil {
		return nil, fmt.Errorf("dialogs not initialized")
	}
	paths, err := dialog.Show(a.dialogs, opts)
	if err != nil {
		return nil, err
	}
	if opts.Folder && len(paths) > 0 && a.stateManager != nil {
		a.stateManager.AddRecentDirectory(paths[0])
	}
	return paths, nil
}

// GetRecentDirectories returns directories recently picked in folder dialogs
func (a *App) GetRecentDirectories() []string {
	if a.stateManager == nil {
		return []string{}
	}
	return a.stateManager.GetRecentDirectories()
}

// ============================================
// Watching
// ============================================

// WatchDirectory emits fs-change events for changes below path
func (a *App) WatchDirectory(path string) error {
	if a.watcher == nil {
		return fmt.Errorf("watcher not initialized")
	}
	resolved := a.resolve(path)
	if err := a.watcher.Watch(resolved, true); err != nil {
		return err
	}
	if a.stateManager != nil {
		a.stateManager.AddWatchedDirectory(resolved)
	}
	return nil
}

// UnwatchDirectory stops watching path
func (a *App) UnwatchDirectory(path string) error {
	if a.watcher == nil {
		return fmt.Errorf("watcher not initialized")
	}
	resolved := a.resolve(path)
	if a.stateManager != nil {
		a.stateManager.RemoveWatchedDirectory(resolved)
	}
	return a.watcher.Unwatch(resolved)
}

// GetWatchedDirectories returns the watched directories
func (a *App) GetWatchedDirectories() []string {
	if a.watcher == nil {
		return []string{}
	}
	return a.watcher.Watched()
}

// ============================================
// State and relay
// ============================================

// SetLastPage records the page the frontend is showing
func (a *App) SetLastPage(page string) {
	if a.stateManager != nil {
		a.stateManager.SetLastPage(cli.NormalizePage(page))
	}
}

// GetStartPage returns the page to open: the --page flag, else the last page seen
func (a *App) GetStartPage() string {
	if a.args.Page != "" {
		return a.args.Page
	}
	if a.stateManager != nil {
		return a.stateManager.GetLastPage()
	}
	return ""
}

// GetRelayInfo returns how local tools reach the event relay
func (a *App) GetRelayInfo() (relay.Info, error) {
	if a.relayServer == nil || !a.relayServer.IsRunning() {
		return relay.Info{}, fmt.Errorf("relay not running")
	}
	return relay.Info{Port: a.relayServer.Port(), Token: a.relayServer.Token()}, nil
}
