package toolchain

import (
	"path/filepath"
	"strings"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/unit"
)

// Toolchain binary names
const (
	CargoBin = "cargo"
	RustcBin = "rustc"
)

// ShellCommand describes one toolchain invocation.
type ShellCommand struct {
	Path string
	Args []string
}

// BuildCommand constructs the compiler invocation for a unit.
func BuildCommand(u *unit.Unit, cfg *config.Config) *ShellCommand {
	if u.Kind == unit.KindCargo {
		return cargoCommand(u, cfg)
	}

	return rustcCommand(u, cfg)
}

// cargoCommand builds a release-mode cargo build against the unit's
// manifest, with the user's extra arguments appended.
func cargoCommand(u *unit.Unit, cfg *config.Config) *ShellCommand {
	args := []string{"build", "--release", "--manifest-path", u.SourcePath}
	args = append(args, cfg.CargoArgs...)

	return &ShellCommand{
		Path: CargoBin,
		Args: args,
	}
}

// rustcCommand compiles a standalone source file as a dynamic library,
// writing straight into the canonical artifact directory. rustc names the
// output lib{stem}.{suffix}, which already matches the artifact path.
func rustcCommand(u *unit.Unit, cfg *config.Config) *ShellCommand {
	args := []string{"--crate-type", "cdylib", "--out-dir", filepath.Dir(u.ArtifactPath)}
	args = append(args, cfg.RustcArgs...)
	args = append(args, u.SourcePath)

	return &ShellCommand{
		Path: RustcBin,
		Args: args,
	}
}

// ReleaseArtifactPath returns cargo's conventional release-output location
// for a crate unit, relative to the manifest's directory. Cargo normalizes
// hyphens in the package name to underscores when naming the library file;
// the canonical artifact keeps the declared name and the relocation rename
// bridges the two.
func ReleaseArtifactPath(u *unit.Unit) string {
	lib := "lib" + strings.ReplaceAll(u.Name, "-", "_") + "." + unit.DylibSuffix()

	return filepath.Join(filepath.Dir(u.SourcePath), "target", "release", lib)
}
