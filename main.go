package main

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"xxmm/internal/cli"
	"xxmm/internal/config"
	"xxmm/internal/logging"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := cli.Parse(argv, os.Stdout)
	if errors.Is(err, cli.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	if args.Command != nil && args.Command.Name == cli.CommandVersion {
		if err := cli.WriteVersion(os.Stdout, args.Command.Detailed); err != nil {
			return 1
		}
		return 0
	}

	dataDir, err := config.DataDir(args.CustomConfigFolder)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	cfg, warnings, err := config.Load(dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	paths, err := config.ResolvePaths(cfg, args.CustomConfigFolder)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	if args.Command != nil && args.Command.Name == cli.CommandTest {
		if err := cli.WriteReport(os.Stdout, args, testReport(args.Command.Debug, cfg, paths, warnings)); err != nil {
			return 1
		}
		return 0
	}

	logCfg := logging.DefaultConfig(paths.DataDir)
	logCfg.JSONOutput = cfg.Log.JSON
	logCfg.MaxAge = cfg.LogMaxAge()
	logCfg.DevMode = args.DevMode
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: file logging disabled:", err)
	}
	if warnings != nil {
		for _, w := range warnings.Warnings {
			logging.Warn("Config value replaced", "detail", w)
		}
	}
	logging.Info("Starting", "version", cli.Version, "page", args.Page, "devMode", args.DevMode)

	// Create an instance of the app structure
	app := NewApp(args, cfg, paths)

	// Create application with options
	err = wails.Run(&options.App{
		Title:     "XX Mod Manager",
		Width:     1280,
		Height:    800,
		MinWidth:  minWindowWidth,
		MinHeight: minWindowHeight,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     true,
			DisableWebViewDrop: true,
			CSSDropProperty:    "--wails-drop-target",
			CSSDropValue:       "drop",
		},
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar:             mac.TitleBarHiddenInset(),
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
		},
		Debug: options.Debug{
			OpenInspectorOnStartup: args.DevTools,
		},
	})

	if err != nil {
		logging.Error("Application failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err.Error())
		return 1
	}
	return 0
}

// testReport describes the resolved environment for the test subcommand
func testReport(debug bool, cfg *config.Config, paths *config.Paths, warnings *config.ValidationError) map[string]interface{} {
	report := map[string]interface{}{
		"paths":  paths,
		"config": cfg,
	}
	if warnings != nil {
		report["warnings"] = warnings.Warnings
	}
	if debug {
		env := map[string]string{}
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, config.EnvPrefix+"_") {
				env[k] = v
			}
		}
		report["env"] = env
		report["runtime"] = map[string]interface{}{
			"go":     runtime.Version(),
			"os":     runtime.GOOS,
			"arch":   runtime.GOARCH,
			"numCPU": runtime.NumCPU(),
		}
	}
	return report
}
