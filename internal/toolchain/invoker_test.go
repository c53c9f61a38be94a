package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/unit"
)

// mockCommander implements Commander interface for testing
type mockCommander struct {
	runFunc func() error
}

func (m *mockCommander) Run() error {
	return m.runFunc()
}

// newTestInvoker returns an invoker whose toolchain lookup always succeeds
// and whose command execution runs fn instead of a real process.
func newTestInvoker(fn func(name string, args ...string) error) *Invoker {
	iv := New()
	iv.lookPath = func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	}
	iv.execCommand = func(name string, args ...string) Commander {
		return &mockCommander{
			runFunc: func() error {
				return fn(name, args...)
			},
		}
	}

	return iv
}

func rustcTestUnit(t *testing.T) *unit.Unit {
	t.Helper()

	root := t.TempDir()
	source := filepath.Join(root, "hello.rs")
	require.NoError(t, os.WriteFile(source, []byte("fn main() {}"), 0o644))

	artifactDir := filepath.Join(root, ".rustlink", "libs", "rustc", "hello")
	return &unit.Unit{
		Kind:         unit.KindRustc,
		Name:         "hello",
		Slug:         "rustc/hello",
		SourcePath:   source,
		ArtifactPath: filepath.Join(artifactDir, "libhello."+unit.DylibSuffix()),
	}
}

func cargoTestUnit(t *testing.T) *unit.Unit {
	return cargoTestUnitNamed(t, "mylib")
}

func cargoTestUnitNamed(t *testing.T, name string) *unit.Unit {
	t.Helper()

	root := t.TempDir()
	crateDir := filepath.Join(root, "crates", name)
	require.NoError(t, os.MkdirAll(crateDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(crateDir, "Cargo.toml"), []byte("[package]\nname = \""+name+"\"\n"), 0o644))

	return &unit.Unit{
		Kind:         unit.KindCargo,
		Name:         name,
		Slug:         "cargo/crates/" + name,
		SourcePath:   filepath.Join(crateDir, "Cargo.toml"),
		ArtifactPath: filepath.Join(root, ".rustlink", "libs", "cargo", "crates", name, "lib"+name+"."+unit.DylibSuffix()),
	}
}

func TestCompile_RustcSuccess(t *testing.T) {
	u := rustcTestUnit(t)

	var gotName string
	var gotArgs []string
	iv := newTestInvoker(func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	})

	err := iv.Compile(u, &config.Config{})
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/rustc", gotName)
	assert.Contains(t, gotArgs, "cdylib")

	// Artifact parent directory was prepared
	info, err := os.Stat(filepath.Dir(u.ArtifactPath))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCompile_RemovesStaleArtifact(t *testing.T) {
	u := rustcTestUnit(t)

	// Pre-existing artifact from an earlier build
	require.NoError(t, os.MkdirAll(filepath.Dir(u.ArtifactPath), 0o755))
	require.NoError(t, os.WriteFile(u.ArtifactPath, []byte("stale"), 0o644))

	iv := newTestInvoker(func(name string, args ...string) error {
		return nil
	})

	err := iv.Compile(u, &config.Config{})
	require.NoError(t, err)

	_, err = os.Stat(u.ArtifactPath)
	assert.True(t, os.IsNotExist(err), "stale artifact should be removed before compiling")
}

func TestCompile_CargoRelocatesArtifact(t *testing.T) {
	u := cargoTestUnit(t)

	iv := newTestInvoker(func(name string, args ...string) error {
		// Simulate cargo producing its conventional release output
		release := ReleaseArtifactPath(u)
		if err := os.MkdirAll(filepath.Dir(release), 0o755); err != nil {
			return err
		}
		return os.WriteFile(release, []byte("compiled"), 0o644)
	})

	err := iv.Compile(u, &config.Config{})
	require.NoError(t, err)

	// Moved, not copied
	data, err := os.ReadFile(u.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(data))

	_, err = os.Stat(ReleaseArtifactPath(u))
	assert.True(t, os.IsNotExist(err))
}

func TestCompile_CargoHyphenatedPackageName(t *testing.T) {
	u := cargoTestUnitNamed(t, "my-lib")

	iv := newTestInvoker(func(name string, args ...string) error {
		// cargo writes libmy_lib, not libmy-lib
		release := ReleaseArtifactPath(u)
		require.Equal(t, "libmy_lib."+unit.DylibSuffix(), filepath.Base(release))

		if err := os.MkdirAll(filepath.Dir(release), 0o755); err != nil {
			return err
		}
		return os.WriteFile(release, []byte("compiled"), 0o644)
	})

	err := iv.Compile(u, &config.Config{})
	require.NoError(t, err)

	// Relocated under the declared package name
	data, err := os.ReadFile(u.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(data))
}

func TestCompile_CargoRenameFailure(t *testing.T) {
	u := cargoTestUnit(t)

	// cargo "succeeds" but never produces the release output
	iv := newTestInvoker(func(name string, args ...string) error {
		return nil
	})

	err := iv.Compile(u, &config.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenameFailed)
}

func TestCompile_ToolchainMissing(t *testing.T) {
	u := rustcTestUnit(t)

	iv := New()
	iv.lookPath = func(file string) (string, error) {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
	}

	err := iv.Compile(u, &config.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolchainMissing)
	assert.Contains(t, err.Error(), u.Slug)
}

func TestCompile_CompilationFailed(t *testing.T) {
	u := rustcTestUnit(t)

	iv := newTestInvoker(func(name string, args ...string) error {
		return errors.New("process failure")
	})

	err := iv.Compile(u, &config.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompilationFailed)
	assert.Contains(t, err.Error(), u.Slug, "error should identify the failing unit")
}
