// Package loader binds the symbols of a compiled artifact into live
// callable handles.
//
// The dynamic-loading mechanism itself is an external collaborator: given
// an artifact path and the declared signatures, an Opener returns one
// callable per symbol. The loader's own job is manifest lookup and shaping
// the result into a Library.
package loader

import (
	"errors"
	"fmt"

	"github.com/rustlink/rustlink/internal/manifest"
	"github.com/rustlink/rustlink/internal/unit"
)

// ErrMissingEntry is returned when the symbol manifest declares no symbols
// for a resolved unit's source key.
var ErrMissingEntry = errors.New("no symbol manifest entry")

// Func is a live callable handle bound to one exported native symbol.
type Func func(args ...interface{}) (interface{}, error)

// Opener is the dynamic-loading collaborator: it opens a compiled dynamic
// library and binds the declared symbols.
type Opener interface {
	Open(path string, symbols manifest.SymbolSet) (map[string]Func, error)
}

// Library holds the bound symbols of one loaded unit.
type Library struct {
	unit    *unit.Unit
	symbols map[string]Func
}

// Unit returns the unit this library was loaded for.
func (l *Library) Unit() *unit.Unit {
	return l.unit
}

// Symbol returns the handle for one exported symbol.
func (l *Library) Symbol(name string) (Func, bool) {
	fn, ok := l.symbols[name]
	return fn, ok
}

// Symbols returns every bound handle, keyed by symbol name. This is the
// bulk handle aggregating the whole unit, used as the default export.
func (l *Library) Symbols() map[string]Func {
	symbols := make(map[string]Func, len(l.symbols))
	for name, fn := range l.symbols {
		symbols[name] = fn
	}

	return symbols
}

// Loader resolves manifest entries and delegates symbol binding.
type Loader struct {
	manifest *manifest.Manifest
	opener   Opener
}

// New creates a loader over a parsed symbol manifest and an opener.
func New(m *manifest.Manifest, opener Opener) *Loader {
	return &Loader{
		manifest: m,
		opener:   opener,
	}
}

// Load binds the symbols declared for a unit's source key against its
// compiled artifact. Fails with ErrMissingEntry when the manifest has no
// entry for the key; a unit never silently loads zero symbols.
func (ld *Loader) Load(u *unit.Unit, sourceKey string) (*Library, error) {
	symbols, ok := ld.manifest.Lookup(sourceKey)
	if !ok {
		return nil, fmt.Errorf("%w for %s (unit %s)", ErrMissingEntry, sourceKey, u.Slug)
	}

	bound, err := ld.opener.Open(u.ArtifactPath, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s from %s: %w", u.Slug, u.ArtifactPath, err)
	}

	return &Library{
		unit:    u,
		symbols: bound,
	}, nil
}
