package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/manifest"
	"github.com/rustlink/rustlink/internal/unit"
)

// fakeInvoker implements CompileRunner against the test filesystem.
type fakeInvoker struct {
	fs    afero.Fs
	calls []string
	err   error
}

func (f *fakeInvoker) Compile(u *unit.Unit, cfg *config.Config) error {
	f.calls = append(f.calls, u.Slug)
	if f.err != nil {
		return f.err
	}

	if err := f.fs.MkdirAll(filepath.Dir(u.ArtifactPath), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(f.fs, u.ArtifactPath, []byte("artifact"), 0o644)
}

type fixture struct {
	root     string
	fs       afero.Fs
	cfg      *config.Config
	invoker  *fakeInvoker
	manifest *manifest.Manifest
}

// newFixture lays out a project with one single-file unit (hello.rs) and
// one crate unit (crates/mylib).
func newFixture(t *testing.T) *fixture {
	t.Helper()

	memFs := afero.NewMemMapFs()
	root := filepath.FromSlash("/project")

	write := func(path string, content string) {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, memFs.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(memFs, full, []byte(content), 0o644))
	}

	write("src/hello.rs", "fn hello() {}")
	write("crates/mylib/Cargo.toml", "[package]\nname = \"mylib\"\n")
	write("crates/mylib/src/lib.rs", "pub fn process() {}")
	write("rustlink.json", `{
		"src/hello.rs": {"hello": {"args": [], "returns": "unit"}},
		"crates/mylib/Cargo.toml": {"process": {"args": ["bytes"], "returns": "bytes"}}
	}`)

	m, err := manifest.Load(memFs, filepath.Join(root, "rustlink.json"))
	require.NoError(t, err)

	return &fixture{
		root:     root,
		fs:       memFs,
		cfg:      &config.Config{OutputDir: ".rustlink"},
		invoker:  &fakeInvoker{fs: memFs},
		manifest: m,
	}
}

func (fx *fixture) pipeline() *Pipeline {
	return New(fx.cfg, fx.root, WithFs(fx.fs), WithInvoker(fx.invoker))
}

func (fx *fixture) run(t *testing.T) []UnitResult {
	t.Helper()
	results, err := fx.pipeline().Run(fx.manifest)
	require.NoError(t, err)
	return results
}

func TestRun_FirstRunCompilesEverything(t *testing.T) {
	fx := newFixture(t)

	results := fx.run(t)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.True(t, result.Rebuilt, "unit %s should rebuild on first run", result.Unit.Slug)
	}

	// Deterministic manifest order
	assert.Equal(t, []string{"cargo/crates/mylib", "rustc/src/hello"}, fx.invoker.calls)

	// Hash records were written
	exists, err := afero.Exists(fx.fs, filepath.Join(fx.root, ".rustlink", "hash", "rustc", "src", "hello", "hello.hash"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRun_SecondRunIsFresh(t *testing.T) {
	fx := newFixture(t)

	fx.run(t)
	fx.invoker.calls = nil

	results := fx.run(t)
	for _, result := range results {
		assert.False(t, result.Rebuilt, "unchanged unit %s should be fresh", result.Unit.Slug)
	}
	assert.Empty(t, fx.invoker.calls, "no compiler invocation on a fully fresh run")
}

func TestRun_EditedSourceRecompilesThatUnitOnly(t *testing.T) {
	fx := newFixture(t)

	fx.run(t)
	fx.invoker.calls = nil

	// Edit the single-file unit
	hello := filepath.Join(fx.root, "src", "hello.rs")
	require.NoError(t, afero.WriteFile(fx.fs, hello, []byte("fn hello() { unreachable!() }"), 0o644))

	fx.run(t)
	assert.Equal(t, []string{"rustc/src/hello"}, fx.invoker.calls)
}

func TestRun_EditedCrateSourceRecompilesCrate(t *testing.T) {
	fx := newFixture(t)

	fx.run(t)
	fx.invoker.calls = nil

	lib := filepath.Join(fx.root, "crates", "mylib", "src", "lib.rs")
	require.NoError(t, afero.WriteFile(fx.fs, lib, []byte("pub fn process2() {}"), 0o644))

	fx.run(t)
	assert.Equal(t, []string{"cargo/crates/mylib"}, fx.invoker.calls)
}

func TestRun_CrateTargetDirDoesNotInvalidate(t *testing.T) {
	fx := newFixture(t)

	fx.run(t)
	fx.invoker.calls = nil

	// cargo's own build output appears inside the crate
	scratch := filepath.Join(fx.root, "crates", "mylib", "target", "release", "libmylib.so")
	require.NoError(t, fx.fs.MkdirAll(filepath.Dir(scratch), 0o755))
	require.NoError(t, afero.WriteFile(fx.fs, scratch, []byte("ELF"), 0o644))

	fx.run(t)
	assert.Empty(t, fx.invoker.calls, "excluded build output must not perturb the crate fingerprint")
}

func TestRun_ConfigurationChangeInvalidatesAllUnits(t *testing.T) {
	fx := newFixture(t)

	fx.run(t)
	fx.invoker.calls = nil

	// Toggle an extra-argument list; unit content is unchanged
	fx.cfg.RustcArgs = []string{"-O"}

	results := fx.run(t)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.Rebuilt)
		assert.Equal(t, ReasonConfigChanged, result.Reason)
	}
	assert.Len(t, fx.invoker.calls, 2)

	// And the new configuration becomes the recorded one
	fx.invoker.calls = nil
	fx.run(t)
	assert.Empty(t, fx.invoker.calls)
}

func TestRun_ForceRecompilesEverything(t *testing.T) {
	fx := newFixture(t)

	fx.run(t)
	fx.invoker.calls = nil

	fx.cfg.Force = true

	// Force changes the configuration fingerprint too; both triggers fire
	results := fx.run(t)
	for _, result := range results {
		assert.True(t, result.Rebuilt)
	}
	assert.Len(t, fx.invoker.calls, 2)

	// Force stays on: still rebuilding with fresh records
	fx.invoker.calls = nil
	results = fx.run(t)
	for _, result := range results {
		assert.True(t, result.Rebuilt)
		assert.Equal(t, ReasonForced, result.Reason)
	}
	assert.Len(t, fx.invoker.calls, 2)
}

func TestRun_MissingArtifactTriggersRebuild(t *testing.T) {
	fx := newFixture(t)

	results := fx.run(t)
	fx.invoker.calls = nil

	// Delete one compiled artifact; hash records stay fresh
	var helloArtifact string
	for _, result := range results {
		if result.Unit.Kind == unit.KindRustc {
			helloArtifact = result.Unit.ArtifactPath
		}
	}
	require.NotEmpty(t, helloArtifact)
	require.NoError(t, fx.fs.Remove(helloArtifact))

	fx.run(t)
	assert.Equal(t, []string{"rustc/src/hello"}, fx.invoker.calls)
}

func TestRun_CompileFailureAbortsRun(t *testing.T) {
	fx := newFixture(t)
	fx.invoker.err = errors.New("compilation failed: rustc exited with code 1")

	_, err := fx.pipeline().Run(fx.manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed")

	// Aborted on the first unit; the second was never attempted
	assert.Len(t, fx.invoker.calls, 1)
}

func TestRun_MissingSourceFails(t *testing.T) {
	fx := newFixture(t)

	require.NoError(t, fx.fs.Remove(filepath.Join(fx.root, "src", "hello.rs")))

	_, err := fx.pipeline().Run(fx.manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rustc/src/hello")
}
