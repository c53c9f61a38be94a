// Package fingerprint computes content fingerprints for source files and
// directory trees.
//
// A fingerprint is an ordered sequence of content hashes: a single hash for
// a file, or one hash per tracked file for a directory tree. The sequence
// order follows the directory listing, so identical content traversed on
// the same filesystem always yields an identical fingerprint. Excluded
// subtrees (build output directories and the like) never contribute to the
// result.
package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// ErrNotFound is returned when the requested source path does not exist.
var ErrNotFound = errors.New("source not found")

// Fingerprint is an ordered sequence of hex-encoded content hashes.
type Fingerprint []string

// Serialize returns the canonical on-disk form: one hash per line.
func (fp Fingerprint) Serialize() string {
	return strings.Join(fp, "\n")
}

// Equal reports whether two fingerprints are identical, including order.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	return fp.Serialize() == other.Serialize()
}

// Parse rebuilds a fingerprint from its serialized form.
func Parse(s string) Fingerprint {
	if s == "" {
		return nil
	}
	return Fingerprint(strings.Split(s, "\n"))
}

// HashFunc defines a function that creates a new hash.Hash instance.
type HashFunc func() hash.Hash

// Engine computes fingerprints against a filesystem.
type Engine struct {
	fs       afero.Fs
	hashFunc HashFunc
}

// Option defines a function that configures an Engine.
type Option func(*Engine)

// WithFs sets the filesystem implementation for the engine.
// This is primarily useful for testing with in-memory filesystems.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithHashFunc sets the hash function for the engine.
// The default is xxHash64. Changing it invalidates existing hash records.
func WithHashFunc(hashFunc HashFunc) Option {
	return func(e *Engine) {
		e.hashFunc = hashFunc
	}
}

// New creates a fingerprint engine. It uses the OS filesystem and xxHash64
// unless overridden with options.
func New(options ...Option) *Engine {
	engine := &Engine{
		fs:       afero.NewOsFs(),
		hashFunc: func() hash.Hash { return xxhash.New() },
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// File returns a single-element fingerprint of the file's full byte content.
// Returns ErrNotFound if the path does not exist.
func (e *Engine) File(path string) (Fingerprint, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := e.hashFunc()
	if err := hashContent(f, h); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return Fingerprint{hex.EncodeToString(h.Sum(nil))}, nil
}

// Tree returns the fingerprint of a directory tree in listing order.
//
// If path is itself in excluded, the result is empty. Regular files
// contribute their file fingerprint; subdirectories are descended into when
// recurse is true. Sub-calls always recurse: the flag limits traversal at
// the first level only, while the exclusion set is re-checked at every
// level. Depth is otherwise unlimited.
func (e *Engine) Tree(path string, excluded []string, recurse bool) (Fingerprint, error) {
	if isExcluded(path, excluded) {
		return nil, nil
	}

	entries, err := afero.ReadDir(e.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	var fp Fingerprint
	for _, entry := range entries {
		entryPath := filepath.Join(path, entry.Name())

		if entry.IsDir() {
			if !recurse {
				continue
			}

			sub, err := e.Tree(entryPath, excluded, true)
			if err != nil {
				return nil, err
			}

			fp = append(fp, sub...)
			continue
		}

		if !entry.Mode().IsRegular() {
			continue
		}

		if isExcluded(entryPath, excluded) {
			continue
		}

		file, err := e.File(entryPath)
		if err != nil {
			return nil, err
		}

		fp = append(fp, file...)
	}

	return fp, nil
}

// isExcluded reports whether path matches any entry of the exclusion set.
func isExcluded(path string, excluded []string) bool {
	clean := filepath.Clean(path)
	for _, ex := range excluded {
		if filepath.Clean(ex) == clean {
			return true
		}
	}

	return false
}

// Default size for the buffer used when hashing file content.
const defaultBufferSize = 32 * 1024 // 32KB

// bufferPool is a pool of byte slices used for file I/O during hashing.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buffer := make([]byte, defaultBufferSize)
		return &buffer
	},
}

// hashContent streams a reader into the hash.
func hashContent(content io.Reader, h hash.Hash) error {
	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	_, err := io.CopyBuffer(h, content, buffer)
	return err
}
