// Package command runs the external tools idlepower shells out to
// (qm, lsusb, modprobe, systemctl, systemd-inhibit).
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a binary and returns its standard output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs commands on the host via os/exec
type ExecRunner struct{}

// NewExecRunner returns the default host runner
func NewExecRunner() ExecRunner {
	return ExecRunner{}
}

// Run executes name with args; stderr is folded into the returned error
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- binaries are fixed by callers, arguments are VM ids and bus numbers
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.Bytes(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w, stderr: %s", name, strings.Join(args, " "), err, msg)
	}

	return stdout.Bytes(), nil
}
