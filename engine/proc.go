package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// Proc is a running engine process as seen by the handle: a frame stream in
// each direction plus lifecycle control. Injected for tests.
type Proc interface {
	// Start launches the process. Must be called before the stream accessors.
	Start(ctx context.Context) error
	// Stdin is the host-to-engine frame stream.
	Stdin() io.Writer
	// Stdout is the engine-to-host frame stream.
	Stdout() io.Reader
	// Stderr carries engine diagnostics, captured for crash reports.
	Stderr() io.Reader
	// Kill terminates the process immediately.
	Kill() error
	// Wait blocks until exit and returns the exit code.
	Wait() (int, error)
}

// ProcFactory builds engine processes. The default factory execs the engine
// binary; tests substitute in-memory pipes.
type ProcFactory func() Proc

// execProc runs the engine binary as a child process. Stdin and stdout carry
// protocol frames; stderr is captured for diagnostics.
type execProc struct {
	path string
	args []string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// NewExecFactory returns a factory launching the engine binary at path with
// the given arguments.
func NewExecFactory(path string, args ...string) ProcFactory {
	return func() Proc {
		return &execProc{path: path, args: args}
	}
}

func (p *execProc) Start(ctx context.Context) error {
	p.cmd = exec.CommandContext(ctx, p.path, p.args...)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	p.stdin = stdin

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stdout = stdout

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	p.stderr = stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	return nil
}

func (p *execProc) Stdin() io.Writer  { return p.stdin }
func (p *execProc) Stdout() io.Reader { return p.stdout }
func (p *execProc) Stderr() io.Reader { return p.stderr }

func (p *execProc) Kill() error {
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}

func (p *execProc) Wait() (int, error) {
	if p.cmd == nil {
		return -1, errors.New("engine not started")
	}
	err := p.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				return status.ExitStatus(), nil
			}
			return -1, nil
		}
		return -1, fmt.Errorf("engine wait failed: %w", err)
	}
	return 0, nil
}
