package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"xxmm/internal/logging"

	"github.com/google/uuid"
)

// ErrElevationUnsupported is returned for elevated launches outside Windows
var ErrElevationUnsupported = errors.New("elevated launch is only supported on Windows")

// exitWaitTimeout bounds how long exit reporting waits for captured output to drain
const exitWaitTimeout = 2 * time.Second

// Options control how a program is started
type Options struct {
	// Args is split on whitespace
	Args string
	// Hide starts the program without a console window (Windows)
	Hide bool
	// Elevate requests administrator rights (Windows)
	Elevate bool
	// Capture streams the program's output to the output handler
	Capture bool
}

// Program is a launched process
type Program struct {
	ID        string
	Path      string
	Args      []string
	Cmd       *exec.Cmd
	StartedAt time.Time

	captured bool
	output   io.ReadCloser
	running  bool
	exitCode int
	mu       sync.Mutex
	drained  chan struct{}
	onOutput func(id string, data []byte)
	onExit   func(id string, code int)
}

// Manager tracks launched programs
type Manager struct {
	programs map[string]*Program
	mu       sync.RWMutex
	onOutput func(id string, data []byte)
	onExit   func(id string, code int)
}

// NewManager creates a new program manager
func NewManager() *Manager {
	return &Manager{
		programs: make(map[string]*Program),
	}
}

// SetOutputHandler sets the callback for captured output
func (m *Manager) SetOutputHandler(handler func(id string, data []byte)) {
	m.onOutput = handler
}

// SetExitHandler sets the callback for program exit
func (m *Manager) SetExitHandler(handler func(id string, code int)) {
	m.onExit = handler
}

// SplitArgs splits an argument string on whitespace
func SplitArgs(args string) []string {
	return strings.Fields(args)
}

// Launch starts the program at path. Elevated launches are handed to the
// OS and are not tracked; the returned info then has no pid.
func (m *Manager) Launch(path string, opts Options) (ProgramInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ProgramInfo{}, fmt.Errorf("program not found: %s", path)
	}
	if info.IsDir() {
		return ProgramInfo{}, fmt.Errorf("program is a directory: %s", path)
	}

	args := SplitArgs(opts.Args)
	id := uuid.New().String()

	if opts.Elevate {
		if err := elevate(path, args, filepath.Dir(path)); err != nil {
			logging.Error("Elevated launch failed", "path", logging.MaskPath(path), "error", err)
			return ProgramInfo{}, err
		}
		logging.Info("Program launched elevated", "id", id, "path", logging.MaskPath(path))
		return ProgramInfo{ID: id, Path: path, Args: args, Elevated: true, StartedAt: time.Now()}, nil
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = filepath.Dir(path)
	if opts.Hide {
		hideWindow(cmd)
	}

	p := &Program{
		ID:       id,
		Path:     path,
		Args:     args,
		Cmd:      cmd,
		captured: opts.Capture,
		running:  true,
		exitCode: -1,
		drained:  make(chan struct{}),
		onOutput: m.onOutput,
		onExit:   m.onExit,
	}

	if opts.Capture {
		out, err := startCaptured(cmd)
		if err != nil {
			logging.Error("Failed to start program", "id", id, "path", logging.MaskPath(path), "error", err)
			return ProgramInfo{}, fmt.Errorf("failed to start program: %w", err)
		}
		p.output = out
		go p.readOutput()
	} else {
		if err := cmd.Start(); err != nil {
			logging.Error("Failed to start program", "id", id, "path", logging.MaskPath(path), "error", err)
			return ProgramInfo{}, fmt.Errorf("failed to start program: %w", err)
		}
		close(p.drained)
	}
	p.StartedAt = time.Now()

	m.mu.Lock()
	m.programs[id] = p
	m.mu.Unlock()

	go m.waitForExit(p)

	logging.Info("Program launched", "id", id, "path", logging.MaskPath(path), "args", len(args), "captured", opts.Capture)
	return p.Info(), nil
}

// Get returns a program by ID
func (m *Manager) Get(id string) *Program {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.programs[id]
}

// List returns info about all tracked programs
func (m *Manager) List() []ProgramInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]ProgramInfo, 0, len(m.programs))
	for _, p := range m.programs {
		list = append(list, p.Info())
	}
	return list
}

// Kill terminates a program
func (m *Manager) Kill(id string) error {
	p := m.Get(id)
	if p == nil {
		return fmt.Errorf("program not found: %s", id)
	}
	logging.Info("Program killed", "id", id)
	return p.Kill()
}

// CloseAll kills every running program and stops tracking them
func (m *Manager) CloseAll() {
	m.mu.Lock()
	progs := make([]*Program, 0, len(m.programs))
	for _, p := range m.programs {
		progs = append(progs, p)
	}
	m.programs = make(map[string]*Program)
	m.mu.Unlock()

	for _, p := range progs {
		p.Kill()
	}
}

func (m *Manager) waitForExit(p *Program) {
	err := p.Cmd.Wait()

	code := 0
	if p.Cmd.ProcessState != nil {
		code = p.Cmd.ProcessState.ExitCode()
	} else if err != nil {
		code = -1
	}

	// Output from a pty ends once the child side closes. A grandchild that
	// inherited the terminal keeps it open, so stop waiting after a while.
	select {
	case <-p.drained:
	case <-time.After(exitWaitTimeout):
	}
	if p.output != nil {
		p.output.Close()
	}

	p.mu.Lock()
	p.running = false
	p.exitCode = code
	p.mu.Unlock()

	logging.Info("Program exited", "id", p.ID, "code", code)
	if p.onExit != nil {
		p.onExit(p.ID, code)
	}
}

func (p *Program) readOutput() {
	defer close(p.drained)
	buf := make([]byte, 4096)
	for {
		n, err := p.output.Read(buf)
		if n > 0 && p.onOutput != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.onOutput(p.ID, data)
		}
		if err != nil {
			return
		}
	}
}

// Kill terminates the process if it is still running
func (p *Program) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.Cmd.Process == nil {
		return nil
	}
	if err := p.Cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// IsRunning returns whether the process is still running
func (p *Program) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ExitCode returns the exit code, or -1 while running
func (p *Program) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// ProgramInfo is the info sent to frontend
type ProgramInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Args      []string  `json:"args"`
	Pid       int       `json:"pid"`
	Running   bool      `json:"running"`
	Captured  bool      `json:"captured"`
	Elevated  bool      `json:"elevated"`
	ExitCode  int       `json:"exitCode"`
	StartedAt time.Time `json:"startedAt"`
}

// Info returns program info for frontend
func (p *Program) Info() ProgramInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	pid := 0
	if p.Cmd.Process != nil {
		pid = p.Cmd.Process.Pid
	}
	return ProgramInfo{
		ID:        p.ID,
		Path:      p.Path,
		Args:      p.Args,
		Pid:       pid,
		Running:   p.running,
		Captured:  p.captured,
		ExitCode:  p.exitCode,
		StartedAt: p.StartedAt,
	}
}
