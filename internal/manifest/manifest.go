// Package manifest loads the symbol manifest declaring the project's
// native import units.
//
// The manifest is a JSON mapping from project-relative source path (a .rs
// file or a crate's Cargo.toml) to the symbols that unit exposes, each with
// its native signature. The source paths double as the declared unit list:
// the build pipeline processes exactly the manifest's keys.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/afero"
)

// Signature declares a native function's argument and return type tags.
type Signature struct {
	Args    []string `json:"args"`
	Returns string   `json:"returns"`
}

// SymbolSet maps exposed symbol names to their signatures.
type SymbolSet map[string]Signature

// Manifest is the parsed symbol manifest.
type Manifest struct {
	units map[string]SymbolSet
}

// Load reads and parses a symbol manifest file.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol manifest %s: %w", path, err)
	}

	var units map[string]SymbolSet
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("failed to parse symbol manifest %s: %w", path, err)
	}

	return &Manifest{units: units}, nil
}

// Sources returns the declared unit source keys in deterministic order.
func (m *Manifest) Sources() []string {
	sources := make([]string, 0, len(m.units))
	for source := range m.units {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	return sources
}

// Lookup returns the symbol set declared for a source key.
func (m *Manifest) Lookup(source string) (SymbolSet, bool) {
	symbols, ok := m.units[source]
	return symbols, ok
}

// Len returns the number of declared units.
func (m *Manifest) Len() int {
	return len(m.units)
}
