//go:build linux

package shell

import (
	"net/url"
	"path/filepath"

	"xxmm/internal/logging"

	"github.com/godbus/dbus/v5"
)

const (
	fileManagerDest  = "org.freedesktop.FileManager1"
	fileManagerPath  = "/org/freedesktop/FileManager1"
	fileManagerIface = "org.freedesktop.FileManager1"
)

// showItems is swapped by tests
var showItems = func(method string, uris []string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return err
	}
	obj := conn.Object(fileManagerDest, dbus.ObjectPath(fileManagerPath))
	return obj.Call(fileManagerIface+"."+method, 0, uris, "").Err
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

func (s *Shell) openDirectory(path string) error {
	return s.start("xdg-open", path)
}

func (s *Shell) revealFile(path string) error {
	if err := showItems("ShowItems", []string{fileURI(path)}); err != nil {
		logging.Debug("FileManager1 unavailable, falling back to xdg-open", "error", err)
		return s.start("xdg-open", filepath.Dir(path))
	}
	return nil
}

func (s *Shell) revealDirectory(path string) error {
	if err := showItems("ShowFolders", []string{fileURI(path)}); err != nil {
		logging.Debug("FileManager1 unavailable, falling back to xdg-open", "error", err)
		return s.start("xdg-open", path)
	}
	return nil
}
