// Package system provides the process-execution capability through which all
// external tools (cryptsetup, gpg, mount, btrfs, hook shells) are invoked.
package system

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// Result holds the outcome of an external invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external commands. The returned error is non-nil only when
// the command could not be started at all; a command that ran and exited
// non-zero is reported through Result.ExitCode.
//
// Privileged variants prepend sudo when the process is not running as root.
// Input variants feed a secret on stdin; secrets never appear in argv.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	RunWithInput(ctx context.Context, input, name string, args ...string) (Result, error)
	RunPrivileged(ctx context.Context, name string, args ...string) (Result, error)
	RunPrivilegedWithInput(ctx context.Context, input, name string, args ...string) (Result, error)
	RunShell(ctx context.Context, command string) (Result, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	root bool
}

// NewExecRunner creates a runner, probing once whether the process is root.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{root: isRoot()}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return r.exec(ctx, "", name, args)
}

func (r *ExecRunner) RunWithInput(ctx context.Context, input, name string, args ...string) (Result, error) {
	return r.exec(ctx, input, name, args)
}

func (r *ExecRunner) RunPrivileged(ctx context.Context, name string, args ...string) (Result, error) {
	name, args = r.elevate(name, args)
	return r.exec(ctx, "", name, args)
}

func (r *ExecRunner) RunPrivilegedWithInput(ctx context.Context, input, name string, args ...string) (Result, error) {
	name, args = r.elevate(name, args)
	return r.exec(ctx, input, name, args)
}

func (r *ExecRunner) RunShell(ctx context.Context, command string) (Result, error) {
	return r.exec(ctx, "", "sh", []string{"-c", command})
}

func (r *ExecRunner) elevate(name string, args []string) (string, []string) {
	if r.root {
		return name, args
	}
	return "sudo", append([]string{name}, args...)
}

func (r *ExecRunner) exec(ctx context.Context, input, name string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		slog.Error("command_start_failed", "command", name, "error", err)
		return res, err
	}

	return res, nil
}

func isRoot() bool {
	cmd := exec.Command("id", "-u")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == "0"
}
