package stack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Runner executes external commands. It exists so tests can substitute a
// fake and assert on the exact invocations the controller builds.
type Runner interface {
	// Run executes a command to completion in dir with the given
	// environment, returning captured stdout and stderr.
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (stdout, stderr []byte, err error)

	// Stream launches a command and returns its combined output as a
	// reader. Closing the reader terminates the command. The command is
	// also terminated when ctx is cancelled.
	Stream(ctx context.Context, dir string, env []string, name string, args ...string) (io.ReadCloser, error)
}

// ExecRunner runs commands with os/exec. The zero value is ready to use.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func (ExecRunner) Stream(ctx context.Context, dir string, env []string, name string, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stack: opening output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("stack: starting %s: %w", name, err)
	}
	return &processStream{pipe: pipe, cmd: cmd}, nil
}

// processStream ties a command's lifetime to its output reader.
type processStream struct {
	pipe io.ReadCloser
	cmd  *exec.Cmd
}

func (s *processStream) Read(p []byte) (int, error) {
	return s.pipe.Read(p)
}

func (s *processStream) Close() error {
	s.pipe.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// Reap the child; the error is expected after a kill.
	s.cmd.Wait()
	return nil
}
