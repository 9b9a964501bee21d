package dialog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Filter is a named group of extensions
type Filter struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// Options are the frontend's file dialog options
type Options struct {
	Title        string   `json:"title,omitempty"`
	StartingPath string   `json:"startingPath,omitempty"`
	Filters      []Filter `json:"filters,omitempty"`
	Multiple     bool     `json:"multiple"`
	Folder       bool     `json:"folder"`
	Save         bool     `json:"save"`
}

// Runtime shows native dialogs
type Runtime interface {
	OpenFile(opts runtime.OpenDialogOptions) (string, error)
	OpenFiles(opts runtime.OpenDialogOptions) ([]string, error)
	OpenDirectory(opts runtime.OpenDialogOptions) (string, error)
	SaveFile(opts runtime.SaveDialogOptions) (string, error)
}

// WailsRuntime shows dialogs through the Wails runtime
type WailsRuntime struct {
	ctx context.Context
}

// NewWailsRuntime binds dialogs to the Wails startup context
func NewWailsRuntime(ctx context.Context) *WailsRuntime {
	return &WailsRuntime{ctx: ctx}
}

func (w *WailsRuntime) OpenFile(opts runtime.OpenDialogOptions) (string, error) {
	return runtime.OpenFileDialog(w.ctx, opts)
}

func (w *WailsRuntime) OpenFiles(opts runtime.OpenDialogOptions) ([]string, error) {
	return runtime.OpenMultipleFilesDialog(w.ctx, opts)
}

func (w *WailsRuntime) OpenDirectory(opts runtime.OpenDialogOptions) (string, error) {
	return runtime.OpenDirectoryDialog(w.ctx, opts)
}

func (w *WailsRuntime) SaveFile(opts runtime.SaveDialogOptions) (string, error) {
	return runtime.SaveFileDialog(w.ctx, opts)
}

// FileFilters converts filters to runtime filters with patterns like "*.zip;*.7z"
func FileFilters(filters []Filter) []runtime.FileFilter {
	return lo.FilterMap(filters, func(f Filter, _ int) (runtime.FileFilter, bool) {
		patterns := lo.FilterMap(f.Extensions, func(ext string, _ int) (string, bool) {
			ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
			if ext == "" {
				return "", false
			}
			if ext == "*" {
				return "*", true
			}
			return "*." + ext, true
		})
		if len(patterns) == 0 {
			return runtime.FileFilter{}, false
		}
		return runtime.FileFilter{
			DisplayName: f.Name,
			Pattern:     strings.Join(lo.Uniq(patterns), ";"),
		}, true
	})
}

// defaultDirectory is the parent of the starting path
func defaultDirectory(start string) string {
	if start == "" {
		return ""
	}
	return filepath.Dir(start)
}

// Show picks the dialog kind from opts: save, folder, multiple, then single
// file. A cancelled dialog returns nil paths and no error.
func Show(rt Runtime, opts Options) ([]string, error) {
	dir := defaultDirectory(opts.StartingPath)
	filters := FileFilters(opts.Filters)

	var (
		path  string
		paths []string
		err   error
	)
	switch {
	case opts.Save:
		save := runtime.SaveDialogOptions{
			Title:                opts.Title,
			DefaultDirectory:     dir,
			Filters:              filters,
			CanCreateDirectories: true,
		}
		if opts.StartingPath != "" {
			save.DefaultFilename = filepath.Base(opts.StartingPath)
		}
		path, err = rt.SaveFile(save)
	case opts.Folder:
		path, err = rt.OpenDirectory(runtime.OpenDialogOptions{
			Title:                opts.Title,
			DefaultDirectory:     dir,
			CanCreateDirectories: true,
		})
	case opts.Multiple:
		paths, err = rt.OpenFiles(runtime.OpenDialogOptions{
			Title:            opts.Title,
			DefaultDirectory: dir,
			Filters:          filters,
		})
	default:
		path, err = rt.OpenFile(runtime.OpenDialogOptions{
			Title:            opts.Title,
			DefaultDirectory: dir,
			Filters:          filters,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("file dialog: %w", err)
	}

	if path != "" {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return paths, nil
}
