// Package cache persists fingerprint records and decides build freshness.
//
// A record lives at a well-known path derived from the unit's slug. The
// check is a combined compare-and-write: a miss (absent or differing
// record) rewrites the record with the current value before reporting
// stale, so the next unchanged run is a hit. A hit performs no write. The
// operation is not atomic across processes; a single sequential build per
// project is assumed.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/rustlink/rustlink/internal/fingerprint"
)

// ConfigRecordName is the filename of the build-configuration record,
// stored directly under the output directory.
const ConfigRecordName = "__rsconfig.hash"

// Store reads and rewrites fingerprint records on disk.
type Store struct {
	fs afero.Fs
}

// Option defines a function that configures a Store.
type Option func(*Store)

// WithFs sets the filesystem implementation for the store.
// This is primarily useful for testing with in-memory filesystems.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// New creates a store backed by the OS filesystem unless overridden.
func New(options ...Option) *Store {
	store := &Store{fs: afero.NewOsFs()}

	for _, option := range options {
		option(store)
	}

	return store
}

// IsFresh compares the record at recordPath against the current
// fingerprint. On a miss it writes the current fingerprint (creating
// parent directories as needed) and reports false; on a hit it reports
// true without touching the record.
func (s *Store) IsFresh(recordPath string, current fingerprint.Fingerprint) (bool, error) {
	return s.check(recordPath, current.Serialize())
}

// IsCurrent applies the same compare-and-write contract to a single opaque
// serialized value. It backs the build-configuration record: a changed
// value invalidates every unit that run, regardless of per-unit freshness.
func (s *Store) IsCurrent(recordPath, value string) (bool, error) {
	return s.check(recordPath, value)
}

// ConfigRecordPath returns the configuration record location for a
// project's output directory.
func ConfigRecordPath(projectRoot, outputDir string) string {
	return filepath.Join(projectRoot, outputDir, ConfigRecordName)
}

// check compares stored and current serialized values, rewriting on a miss.
func (s *Store) check(recordPath, current string) (bool, error) {
	stored, err := afero.ReadFile(s.fs, recordPath)
	if err == nil && string(stored) == current {
		return true, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read record %s: %w", recordPath, err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(recordPath), 0o755); err != nil {
		return false, fmt.Errorf("failed to create record directory: %w", err)
	}

	if err := afero.WriteFile(s.fs, recordPath, []byte(current), 0o644); err != nil {
		return false, fmt.Errorf("failed to write record %s: %w", recordPath, err)
	}

	return false, nil
}
