// Package cli parses the command line of the desktop process.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// ErrHelp is returned when help was printed instead of parsing a launch
var ErrHelp = errors.New("help requested")

// Pages the frontend can open directly
const (
	PageMain         = "main"
	PageFirstPage    = "firstpage"
	PageSwitchConfig = "switchConfig"
)

// Subcommand names
const (
	CommandTest    = "test"
	CommandVersion = "version"
)

// Command is the subcommand given on the command line
type Command struct {
	Name     string `json:"name"`
	Debug    bool   `json:"debug,omitempty"`
	Detailed bool   `json:"detailed,omitempty"`
}

// Args are the parsed command line arguments
type Args struct {
	DevMode            bool     `json:"devMode"`
	DevTools           bool     `json:"devTools"`
	CustomConfigFolder bool     `json:"customConfigFolder"`
	Page               string   `json:"page"`
	Command            *Command `json:"command"`
}

// NormalizePage maps unknown pages to the default page ""
func NormalizePage(page string) string {
	switch page {
	case PageMain, PageFirstPage, PageSwitchConfig:
		return page
	default:
		return ""
	}
}

// newRootCommand builds the command tree writing parsed values into args
func newRootCommand(args *Args, ran *bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "xxmm",
		Short:         "XX Mod Manager",
		Version:       versionString(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		// The webview host may append its own flags
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			*ran = true
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&args.DevMode, "dev-mode", false, "enable developer mode")
	flags.BoolVar(&args.DevTools, "dev-tools", false, "open the developer tools on startup")
	flags.BoolVar(&args.CustomConfigFolder, "custom-config-folder", false, "keep configuration next to the executable")
	flags.StringVar(&args.Page, "page", "", "open a page directly (main, firstpage, switchConfig)")

	var debugFlag, detailed bool
	test := &cobra.Command{
		Use:   CommandTest,
		Short: "Print the resolved configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*ran = true
			args.Command = &Command{Name: CommandTest, Debug: debugFlag}
			return nil
		},
	}
	test.Flags().BoolVar(&debugFlag, "debug", false, "include debug details")

	version := &cobra.Command{
		Use:   CommandVersion,
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			*ran = true
			args.Command = &Command{Name: CommandVersion, Detailed: detailed}
			return nil
		},
	}
	version.Flags().BoolVar(&detailed, "detailed", false, "print the detailed version information")

	root.AddCommand(test, version)
	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// Parse parses argv (without the program name). Help and --version output
// goes to out and is reported as ErrHelp.
func Parse(argv []string, out io.Writer) (*Args, error) {
	args := &Args{}
	ran := false

	if argv == nil {
		argv = []string{}
	}
	root := newRootCommand(args, &ran)
	root.SetArgs(argv)
	root.SetOut(out)
	root.SetErr(out)

	if err := root.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		return nil, ErrHelp
	}

	args.Page = NormalizePage(args.Page)
	return args, nil
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// WriteVersion prints the version, with build details when detailed is set
func WriteVersion(w io.Writer, detailed bool) error {
	if !detailed {
		_, err := fmt.Fprintf(w, "xxmm %s\n", Version)
		return err
	}

	fmt.Fprintf(w, "xxmm %s\n", versionString())
	fmt.Fprintf(w, "  go:       %s\n", runtime.Version())
	fmt.Fprintf(w, "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range info.Deps {
			if dep.Path == "github.com/wailsapp/wails/v2" {
				fmt.Fprintf(w, "  wails:    %s\n", dep.Version)
			}
		}
	}
	return nil
}

// WriteReport prints args and report as indented JSON
func WriteReport(w io.Writer, args *Args, report interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"args":   args,
		"report": report,
	})
}
