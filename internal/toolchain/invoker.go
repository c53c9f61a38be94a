// Package toolchain invokes the external Rust compilers and places the
// resulting artifact at the unit's canonical path.
//
// Command construction is separated from execution so the invocation
// itself can be exercised in tests through the Commander seam. Only the
// exit status of an invocation is observed; compiler diagnostics stream to
// the console unless the configuration silences them.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/unit"
)

var (
	// ErrToolchainMissing is returned when the required compiler or
	// package-manager binary cannot be located.
	ErrToolchainMissing = errors.New("toolchain binary not found")

	// ErrCompilationFailed is returned when the external process exits
	// non-zero.
	ErrCompilationFailed = errors.New("compilation failed")

	// ErrRenameFailed is returned when the compiled artifact cannot be
	// moved into its canonical location.
	ErrRenameFailed = errors.New("failed to relocate artifact")
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Invoker runs toolchain builds for resolved units.
type Invoker struct {
	execCommand func(name string, args ...string) Commander
	lookPath    func(file string) (string, error)
}

// New creates an invoker backed by os/exec.
func New() *Invoker {
	return &Invoker{
		execCommand: func(name string, args ...string) Commander {
			return exec.Command(name, args...)
		},
		lookPath: exec.LookPath,
	}
}

// Compile builds a unit and places the artifact at its canonical path.
//
// Any pre-existing artifact is removed first (best effort) and the
// artifact's parent directory is created before the toolchain runs. Cargo
// units are relocated from cargo's conventional release-output path; rustc
// units are emitted in place.
func (iv *Invoker) Compile(u *unit.Unit, cfg *config.Config) error {
	if err := os.Remove(u.ArtifactPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale artifact for %s: %w", u.Slug, err)
	}

	if err := os.MkdirAll(filepath.Dir(u.ArtifactPath), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory for %s: %w", u.Slug, err)
	}

	command := BuildCommand(u, cfg)

	bin, err := iv.lookPath(command.Path)
	if err != nil {
		return fmt.Errorf("%w: %s (required for unit %s)", ErrToolchainMissing, command.Path, u.Slug)
	}

	if err := iv.run(bin, command.Args, cfg.Silent); err != nil {
		return fmt.Errorf("unit %s: %w", u.Slug, err)
	}

	if u.Kind == unit.KindCargo {
		if err := os.Rename(ReleaseArtifactPath(u), u.ArtifactPath); err != nil {
			return fmt.Errorf("%w: unit %s: %v", ErrRenameFailed, u.Slug, err)
		}
	}

	return nil
}

// run executes the toolchain process and maps its exit status.
func (iv *Invoker) run(bin string, args []string, silent bool) error {
	c := iv.execCommand(bin, args...)
	if cmd, ok := c.(*exec.Cmd); ok && !silent {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	err := c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%w: %s exited with code %d", ErrCompilationFailed, bin, exitErr.ExitCode())
		}

		return fmt.Errorf("%w: %s: %v", ErrCompilationFailed, bin, err)
	}

	return nil
}
