//go:build !windows

package launcher

import (
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// startCaptured runs cmd on a pseudo-terminal so line-buffered tools flush
// their output as they go.
func startCaptured(cmd *exec.Cmd) (io.ReadCloser, error) {
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 120})
	return ptmx, nil
}

func hideWindow(cmd *exec.Cmd) {}

func elevate(path string, args []string, dir string) error {
	return ErrElevationUnsupported
}
