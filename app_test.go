package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"xxmm/internal/cli"
	"xxmm/internal/config"
	"xxmm/internal/events"
	"xxmm/internal/fsops"
	"xxmm/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp builds the services without a window. The relay stays off.
func newTestApp(t *testing.T) (*App, *events.Recorder, string) {
	t.Helper()
	base := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Relay.Enabled = false
	cfg.Watch.DebounceMs = 20

	app := NewApp(&cli.Args{}, &cfg, &config.Paths{ExeDir: base, DataDir: t.TempDir(), BaseDir: base})
	rec := &events.Recorder{}
	app.bus.Attach("test", rec)
	app.initServices()
	t.Cleanup(app.closeServices)
	return app, rec, base
}

func TestWakeUpNeedsBothSides(t *testing.T) {
	app, rec, _ := newTestApp(t)

	app.MainWindowReady()
	assert.Equal(t, 1, rec.Count(events.MainWindowReady))
	assert.Equal(t, 0, rec.Count(events.WakeUp))

	app.gate.SignalBackendReady()
	assert.Equal(t, 1, rec.Count(events.WakeUp))

	app.MainWindowReady()
	app.gate.SignalBackendReady()
	assert.Equal(t, 2, rec.Count(events.MainWindowReady))
	assert.Equal(t, 1, rec.Count(events.WakeUp))
}

func TestReadFileLeavesPlaceholder(t *testing.T) {
	app, _, base := newTestApp(t)

	_, err := app.ReadFile("mods/missing.ini", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, fsops.ErrNotFound)
	assert.FileExists(t, filepath.Join(base, "mods", "missing.notfound"))
	assert.False(t, app.IsFileExists("mods/missing.ini"))
}

func TestReadFileCreatesEmpty(t *testing.T) {
	app, _, base := newTestApp(t)

	content, err := app.ReadFile("config/preset.json", true)
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.FileExists(t, filepath.Join(base, "config", "preset.json"))

	require.NoError(t, app.WriteFile("config/preset.json", "{}", false))
	content, err = app.ReadFile("config/preset.json", false)
	require.NoError(t, err)
	assert.Equal(t, "{}", content)
}

func TestSnack(t *testing.T) {
	app, rec, _ := newTestApp(t)

	require.NoError(t, app.Snack("Mod enabled", "success", 0, ""))
	require.Error(t, app.Snack("", "info", 0, ""))

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Equal(t, events.Snack, records[0].Name)
	n, ok := records[0].Data[0].(events.Notification)
	require.True(t, ok)
	assert.Equal(t, "Mod enabled", n.Message)
	assert.Equal(t, events.SnackSuccess, n.Type)
	assert.Equal(t, uint64(events.DefaultSnackDuration), n.Duration)
}

func TestDownloadFileToPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mod archive"))
	}))
	defer srv.Close()

	app, rec, base := newTestApp(t)

	require.NoError(t, app.DownloadFileToPath(srv.URL, "downloads/mod.zip", 0))
	data, err := os.ReadFile(filepath.Join(base, "downloads", "mod.zip"))
	require.NoError(t, err)
	assert.Equal(t, "mod archive", string(data))
	assert.GreaterOrEqual(t, rec.Count(events.DownloadProgress), 1)

	body, err := app.DownloadFileToBinary(srv.URL, 1000)
	require.NoError(t, err)
	assert.Equal(t, "mod archive", string(body))
}

func TestDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	app, _, base := newTestApp(t)

	err := app.DownloadFileToPath(srv.URL, "downloads/mod.zip", 0)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(base, "downloads", "mod.zip"))
}

func TestShowDirectoryInExplorerCreatesDirectory(t *testing.T) {
	app, _, base := newTestApp(t)
	opener := &recordingOpener{}
	app.opener = opener

	require.NoError(t, app.ShowDirectoryInExplorer("mods/new", true))
	assert.DirExists(t, filepath.Join(base, "mods", "new"))
	assert.Equal(t, []string{filepath.Join(base, "mods", "new")}, opener.revealed)
}

func TestWatchDirectoryIsRemembered(t *testing.T) {
	app, _, base := newTestApp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "mods"), 0755))

	require.NoError(t, app.WatchDirectory("mods"))
	resolved := filepath.Join(base, "mods")
	assert.Contains(t, app.GetWatchedDirectories(), resolved)
	assert.Equal(t, []string{resolved}, app.stateManager.GetWatchedDirectories())

	require.NoError(t, app.UnwatchDirectory("mods"))
	assert.Empty(t, app.stateManager.GetWatchedDirectories())
}

func TestGetStartPage(t *testing.T) {
	app, _, _ := newTestApp(t)
	assert.Equal(t, "", app.GetStartPage())

	app.SetLastPage(cli.PageSwitchConfig)
	assert.Equal(t, cli.PageSwitchConfig, app.GetStartPage())

	app.SetLastPage("nowhere")
	assert.Equal(t, "", app.GetStartPage())

	app.args.Page = cli.PageFirstPage
	assert.Equal(t, cli.PageFirstPage, app.GetStartPage())
}

func TestGetRelayInfoWhenDisabled(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, err := app.GetRelayInfo()
	assert.Error(t, err)
}

func TestValidWindowState(t *testing.T) {
	tests := []struct {
		name         string
		ws           state.WindowState
		wantPosition bool
		wantSize     bool
	}{
		{"normal", state.WindowState{X: 100, Y: 100, Width: 1280, Height: 800}, true, true},
		{"left monitor", state.WindowState{X: -1920, Y: 0, Width: 800, Height: 600}, true, true},
		{"off screen", state.WindowState{X: 20000, Y: 0, Width: 800, Height: 600}, false, true},
		{"too small", state.WindowState{X: 0, Y: 0, Width: 100, Height: 100}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, size := validWindowState(&tt.ws)
			assert.Equal(t, tt.wantPosition, pos)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestTestReport(t *testing.T) {
	t.Setenv("XXMM_RELAY_PORT", "18000")
	cfg := config.DefaultConfig()
	paths := &config.Paths{ExeDir: "/opt/xxmm", DataDir: "/data", BaseDir: "/opt/xxmm"}

	plain := testReport(false, &cfg, paths, nil)
	assert.NotContains(t, plain, "env")
	assert.NotContains(t, plain, "warnings")

	debug := testReport(true, &cfg, paths, &config.ValidationError{Warnings: []string{"bad port"}})
	assert.Equal(t, map[string]string{"XXMM_RELAY_PORT": "18000"}, debug["env"])
	assert.Equal(t, []string{"bad port"}, debug["warnings"])
	assert.Contains(t, debug, "runtime")
}

type recordingOpener struct {
	revealed []string
}

func (o *recordingOpener) OpenURL(string) error       { return nil }
func (o *recordingOpener) OpenFile(string) error      { return nil }
func (o *recordingOpener) OpenDirectory(string) error { return nil }
func (o *recordingOpener) RevealFile(string) error    { return nil }
func (o *recordingOpener) RevealDirectory(path string) error {
	o.revealed = append(o.revealed, path)
	return nil
}
