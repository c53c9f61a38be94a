// Package unit resolves an imported native source into its canonical
// identity and artifact locations.
//
// A unit is either a standalone .rs file compiled with rustc or a Cargo
// crate identified by its Cargo.toml. Resolution derives a deterministic
// slug from the unit's kind and project-relative path, and from the slug
// the canonical compiled-library and hash-record paths. Apart from reading
// the crate name out of a manifest, resolution is pure: paths never depend
// on file contents.
package unit

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

const (
	// ManifestName is the package manifest filename that marks a cargo unit.
	ManifestName = "Cargo.toml"

	// SourceExt is the native source extension for single-file units.
	SourceExt = ".rs"
)

var (
	// ErrInvalidManifest is returned when a Cargo.toml has no package name.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrInvalidSourceName is returned when a source filename cannot be
	// used as a library identifier.
	ErrInvalidSourceName = errors.New("invalid source name")
)

// Kind identifies how a unit is compiled.
type Kind int

const (
	// KindRustc marks a standalone .rs file compiled directly with rustc.
	KindRustc Kind = iota

	// KindCargo marks a crate built through cargo from its Cargo.toml.
	KindCargo
)

// String returns the slug prefix for the kind.
func (k Kind) String() string {
	if k == KindCargo {
		return "cargo"
	}

	return "rustc"
}

// Unit describes one resolved native import.
type Unit struct {
	// Kind selects the toolchain used to build this unit.
	Kind Kind

	// Name is the library name the artifact is named after: the crate's
	// package.name for cargo units, the filename stem for rustc units.
	Name string

	// Slug is the deterministic identity string, "{kind}/{relative path
	// with extension and manifest filename stripped}".
	Slug string

	// SourcePath is the absolute path to the .rs file or Cargo.toml.
	SourcePath string

	// ArtifactPath is the canonical compiled-library location.
	ArtifactPath string

	// HashRecordPath is the canonical fingerprint-record location.
	HashRecordPath string
}

// identifier matches names usable as a library identifier.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Resolver resolves source paths into units.
type Resolver struct {
	fs afero.Fs
}

// Option defines a function that configures a Resolver.
type Option func(*Resolver)

// WithFs sets the filesystem used to read package manifests.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) {
		r.fs = fs
	}
}

// NewResolver creates a resolver backed by the OS filesystem unless
// overridden.
func NewResolver(options ...Option) *Resolver {
	resolver := &Resolver{fs: afero.NewOsFs()}

	for _, option := range options {
		option(resolver)
	}

	return resolver
}

// Resolve derives a unit from its source location.
//
// projectRoot and sourcePath are absolute; outputDir is relative to
// projectRoot. The slug is a pure function of kind and the source path
// relative to projectRoot, so identical inputs always resolve identically
// and distinct sources never collide.
func (r *Resolver) Resolve(projectRoot, outputDir, sourcePath string) (*Unit, error) {
	rel, err := filepath.Rel(projectRoot, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("source %s is not inside project root %s: %w", sourcePath, projectRoot, err)
	}
	rel = filepath.ToSlash(rel)

	// A ../ prefix would let the slug escape its kind namespace once the
	// artifact path is cleaned
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, fmt.Errorf("source %s is outside project root %s", sourcePath, projectRoot)
	}

	var u *Unit
	switch {
	case path.Base(rel) == ManifestName:
		u, err = r.resolveCargo(rel, sourcePath)
	case path.Ext(rel) == SourceExt:
		u, err = resolveRustc(rel, sourcePath)
	default:
		return nil, fmt.Errorf("%w: %s is neither %s nor a %s file", ErrInvalidSourceName, sourcePath, ManifestName, SourceExt)
	}
	if err != nil {
		return nil, err
	}

	slugDir := filepath.FromSlash(u.Slug)
	u.ArtifactPath = filepath.Join(projectRoot, outputDir, "libs", slugDir, "lib"+u.Name+"."+DylibSuffix())
	u.HashRecordPath = filepath.Join(projectRoot, outputDir, "hash", slugDir, u.Name+".hash")

	return u, nil
}

// resolveCargo builds a cargo unit, reading the crate name from the
// manifest's package.name field.
func (r *Resolver) resolveCargo(rel, sourcePath string) (*Unit, error) {
	name, err := r.packageName(sourcePath)
	if err != nil {
		return nil, err
	}

	return &Unit{
		Kind:       KindCargo,
		Name:       name,
		Slug:       KindCargo.String() + "/" + path.Dir(rel),
		SourcePath: sourcePath,
	}, nil
}

// resolveRustc builds a single-file unit named after the filename stem.
func resolveRustc(rel, sourcePath string) (*Unit, error) {
	stem := strings.TrimSuffix(path.Base(rel), SourceExt)
	if !identifier.MatchString(stem) {
		return nil, fmt.Errorf("%w: %q is not a valid library identifier", ErrInvalidSourceName, stem)
	}

	return &Unit{
		Kind:       KindRustc,
		Name:       stem,
		Slug:       KindRustc.String() + "/" + strings.TrimSuffix(rel, SourceExt),
		SourcePath: sourcePath,
	}, nil
}

// cargoManifest is the subset of Cargo.toml the resolver cares about.
type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// packageName reads the declared package.name from a Cargo.toml.
func (r *Resolver) packageName(manifestPath string) (string, error) {
	data, err := afero.ReadFile(r.fs, manifestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest %s: %w", manifestPath, err)
	}

	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidManifest, manifestPath, err)
	}

	if m.Package.Name == "" {
		return "", fmt.Errorf("%w: %s has no package.name", ErrInvalidManifest, manifestPath)
	}

	return m.Package.Name, nil
}

// DylibSuffix returns the platform dynamic-library extension.
func DylibSuffix() string {
	switch runtime.GOOS {
	case "darwin":
		return "dylib"
	case "windows":
		return "dll"
	default:
		return "so"
	}
}
