package iptables

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Output carries everything one invocation produced.
type Output struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

// Executor abstracts command execution so tests can substitute the host
// binaries. Arguments are always passed as a vector to the operating system,
// never assembled into a shell string.
type Executor interface {
	// Run executes the binary with the given argument vector and returns
	// its captured output. A non-zero exit is returned as a *CommandError
	// alongside whatever output was produced.
	Run(ctx context.Context, command string, args ...string) (Output, error)

	// RunInput is Run with the provided bytes fed to the child's stdin.
	RunInput(ctx context.Context, stdin []byte, command string, args ...string) (Output, error)
}

// RealExecutor executes commands on the host system.
type RealExecutor struct{}

// NewExecutor constructs a RealExecutor instance.
func NewExecutor() Executor {
	return &RealExecutor{}
}

// Run executes the provided command, waiting for it to finish.
func (r *RealExecutor) Run(ctx context.Context, command string, args ...string) (Output, error) {
	return runCommand(ctx, nil, command, args)
}

// RunInput executes the provided command with stdin attached.
func (r *RealExecutor) RunInput(ctx context.Context, stdin []byte, command string, args ...string) (Output, error) {
	return runCommand(ctx, stdin, command, args)
}

func runCommand(ctx context.Context, stdin []byte, command string, args []string) (Output, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	if errors.Is(err, exec.ErrNotFound) {
		return out, fmt.Errorf("%w: %s", ErrBinaryNotFound, command)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.Code = exitErr.ExitCode()
		return out, &CommandError{
			Command: command,
			Args:    append([]string(nil), args...),
			Code:    out.Code,
			Stderr:  stderr.String(),
			Err:     err,
		}
	}

	return out, fmt.Errorf("%w: run %s: %v", ErrIO, command, err)
}
