package system

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// Runner executes external commands. Having it as an interface keeps the
// packages that assemble command lines (disk provisioning, the installer
// container invocation) testable without touching the host.
type Runner interface {
	// Run executes the command and returns an error wrapping the combined
	// output on failure.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes the command and returns its stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// RunInput executes the command with the given stdin.
	RunInput(ctx context.Context, stdin io.Reader, name string, args ...string) error
}

type runner struct {
	log *slog.Logger
}

// NewRunner creates a Runner that logs every invocation.
func NewRunner(log *slog.Logger) Runner {
	if log == nil {
		log = slog.Default()
	}
	return &runner{log: log}
}

func (r *runner) Run(ctx context.Context, name string, args ...string) error {
	r.log.Debug("exec", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w, output: %s", name, err, output)
	}
	return nil
}

func (r *runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	r.log.Debug("exec", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s failed: %w, stderr: %s", name, err, ee.Stderr)
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (r *runner) RunInput(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	r.log.Debug("exec", "cmd", name, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w, output: %s", name, err, output)
	}
	return nil
}

// RequireRoot returns ErrNotRoot unless the process runs as uid 0.
// Partitioning and loop device operations need it.
func RequireRoot() error {
	if unix.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}

// Arch returns the machine architecture in kernel naming (x86_64, aarch64).
func Arch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}
