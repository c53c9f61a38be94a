// Package journal records per-unit build metadata.
//
// Hash records and artifacts live as plain files under the output
// directory; the journal keeps the metadata beside them in BoltDB: one
// entry per unit slug describing the last build (outcome, duration,
// fingerprint digest). The journal is informational: it never decides
// freshness and its failures must not fail a build.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DBName is the journal database filename inside the output directory.
	DBName = "journal.db"

	// bucketName is the BoltDB bucket name for build entries
	bucketName = "builds"
)

// Entry represents one unit's last recorded build.
type Entry struct {
	// Slug is the unit's deterministic identity
	Slug string `json:"slug"`

	// Name is the library name the artifact is named after
	Name string `json:"name"`

	// Kind is the toolchain used ("rustc" or "cargo")
	Kind string `json:"kind"`

	// Digest is the first hash of the unit's fingerprint at build time
	Digest string `json:"digest"`

	// Rebuilt reports whether the toolchain actually ran, or the cached
	// artifact was reused
	Rebuilt bool `json:"rebuilt"`

	// Success indicates if the build was successful
	Success bool `json:"success"`

	// Duration of the unit's processing
	Duration time.Duration `json:"duration"`

	// Timestamp when this entry was recorded
	Timestamp time.Time `json:"timestamp"`
}

// Journal manages build metadata using BoltDB
type Journal struct {
	db   *bbolt.DB
	root string // Output directory holding journal.db and libs/
}

// Open opens (or creates) the journal inside the output directory.
func Open(outputDir string) (*Journal, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	dbPath := filepath.Join(outputDir, DBName)
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	return &Journal{
		db:   db,
		root: outputDir,
	}, nil
}

// Close closes the journal database
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}

	return nil
}

// Record stores an entry, replacing any previous record for the slug.
func (j *Journal) Record(entry Entry) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(entry.Slug), data)
	})
}

// Get retrieves the last entry for a slug.
// Returns nil if the unit has never been recorded.
func (j *Journal) Get(slug string) (*Entry, error) {
	var entry Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(slug))
		if data == nil {
			return nil // Never recorded
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}

	if entry.Slug == "" {
		return nil, nil
	}

	return &entry, nil
}

// List returns every recorded entry in key order.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Stats returns the entry count and the total size of compiled artifacts
func (j *Journal) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	// Calculate total artifact size
	libsDir := filepath.Join(j.root, "libs")
	_ = filepath.Walk(libsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() {
			totalSize += info.Size()
		}

		return nil
	})

	return count, totalSize, nil
}

// Clear removes all journal entries
func (j *Journal) Clear() error {
	err := j.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	return j.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}
