// Package pipeline drives the per-unit build flow: resolve, fingerprint,
// freshness check, compile.
//
// Units are processed one at a time in deterministic order. A unit is
// recompiled when any of four independent triggers holds: its source
// fingerprint is stale, the build configuration changed this run, the
// caller forced recompilation, or the artifact is missing from disk. Any
// unit error aborts the whole run; there is no partial success.
package pipeline

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/rustlink/rustlink/internal/cache"
	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/fingerprint"
	"github.com/rustlink/rustlink/internal/journal"
	"github.com/rustlink/rustlink/internal/manifest"
	"github.com/rustlink/rustlink/internal/toolchain"
	"github.com/rustlink/rustlink/internal/unit"
)

// Rebuild reasons reported in results and logs.
const (
	ReasonFresh         = ""
	ReasonSourceChanged = "source changed"
	ReasonConfigChanged = "configuration changed"
	ReasonForced        = "recompilation forced"
	ReasonNoArtifact    = "artifact missing"
)

// CompileRunner abstracts the toolchain invoker for testing.
type CompileRunner interface {
	Compile(u *unit.Unit, cfg *config.Config) error
}

// UnitResult reports how one unit was processed.
type UnitResult struct {
	Unit      *unit.Unit
	SourceKey string
	Rebuilt   bool
	Reason    string
	Duration  time.Duration
}

// Pipeline runs the incremental build for a project.
type Pipeline struct {
	cfg      *config.Config
	root     string
	fs       afero.Fs
	engine   *fingerprint.Engine
	resolver *unit.Resolver
	store    *cache.Store
	invoker  CompileRunner
	journal  *journal.Journal
	logger   *log.Logger
}

// Option defines a function that configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets the filesystem for fingerprinting, freshness records and
// artifact probing. This is primarily useful for testing with in-memory
// filesystems.
func WithFs(fs afero.Fs) Option {
	return func(p *Pipeline) {
		p.fs = fs
		p.engine = fingerprint.New(fingerprint.WithFs(fs))
		p.resolver = unit.NewResolver(unit.WithFs(fs))
		p.store = cache.New(cache.WithFs(fs))
	}
}

// WithInvoker sets the compile runner.
func WithInvoker(invoker CompileRunner) Option {
	return func(p *Pipeline) {
		p.invoker = invoker
	}
}

// WithJournal sets an optional build journal. Journal failures are logged,
// never fatal.
func WithJournal(j *journal.Journal) Option {
	return func(p *Pipeline) {
		p.journal = j
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline for a project root and effective configuration.
func New(cfg *config.Config, projectRoot string, options ...Option) *Pipeline {
	pipeline := &Pipeline{
		cfg:      cfg,
		root:     projectRoot,
		fs:       afero.NewOsFs(),
		engine:   fingerprint.New(),
		resolver: unit.NewResolver(),
		store:    cache.New(),
		invoker:  toolchain.New(),
		logger:   log.New(io.Discard),
	}

	for _, option := range options {
		option(pipeline)
	}

	return pipeline
}

// Run processes every unit declared in the symbol manifest, sequentially
// and in deterministic order. The first unit error aborts the run.
func (p *Pipeline) Run(m *manifest.Manifest) ([]UnitResult, error) {
	configCurrent, err := p.store.IsCurrent(cache.ConfigRecordPath(p.root, p.cfg.OutputDir), p.cfg.Fingerprint())
	if err != nil {
		return nil, fmt.Errorf("failed to check configuration record: %w", err)
	}
	if !configCurrent {
		p.logger.Info("build configuration changed, all units stale")
	}

	results := make([]UnitResult, 0, m.Len())
	for _, sourceKey := range m.Sources() {
		result, err := p.buildUnit(sourceKey, !configCurrent)
		if err != nil {
			return nil, err
		}

		results = append(results, result)
	}

	return results, nil
}

// buildUnit resolves, fingerprints and (when stale) recompiles one unit.
func (p *Pipeline) buildUnit(sourceKey string, configChanged bool) (UnitResult, error) {
	start := time.Now()

	sourcePath := filepath.Join(p.root, filepath.FromSlash(sourceKey))
	u, err := p.resolver.Resolve(p.root, p.cfg.OutputDir, sourcePath)
	if err != nil {
		return UnitResult{}, fmt.Errorf("failed to resolve %s: %w", sourceKey, err)
	}

	fp, err := p.unitFingerprint(u)
	if err != nil {
		return UnitResult{}, fmt.Errorf("failed to fingerprint %s: %w", u.Slug, err)
	}

	fresh, err := p.store.IsFresh(u.HashRecordPath, fp)
	if err != nil {
		return UnitResult{}, fmt.Errorf("failed to check freshness of %s: %w", u.Slug, err)
	}

	artifactExists, err := afero.Exists(p.fs, u.ArtifactPath)
	if err != nil {
		return UnitResult{}, fmt.Errorf("failed to probe artifact of %s: %w", u.Slug, err)
	}

	reason := ReasonFresh
	switch {
	case p.cfg.Force:
		reason = ReasonForced
	case configChanged:
		reason = ReasonConfigChanged
	case !fresh:
		reason = ReasonSourceChanged
	case !artifactExists:
		reason = ReasonNoArtifact
	}

	result := UnitResult{
		Unit:      u,
		SourceKey: sourceKey,
		Rebuilt:   reason != ReasonFresh,
	}

	if result.Rebuilt {
		p.logger.Info("compiling", "unit", u.Slug, "reason", reason)
		if err := p.invoker.Compile(u, p.cfg); err != nil {
			p.record(u, fp, result, time.Since(start), false)
			return UnitResult{}, err
		}
	} else {
		p.logger.Debug("up to date", "unit", u.Slug)
	}

	result.Reason = reason
	result.Duration = time.Since(start)
	p.record(u, fp, result, result.Duration, true)

	return result, nil
}

// unitFingerprint computes the per-kind source fingerprint: the file's
// content for rustc units, the manifest directory tree for cargo units.
// The crate's own target directory and the project output directory are
// excluded so build outputs never perturb the fingerprint.
func (p *Pipeline) unitFingerprint(u *unit.Unit) (fingerprint.Fingerprint, error) {
	if u.Kind == unit.KindRustc {
		return p.engine.File(u.SourcePath)
	}

	crateDir := filepath.Dir(u.SourcePath)
	excluded := []string{
		filepath.Join(crateDir, "target"),
		filepath.Join(p.root, p.cfg.OutputDir),
	}

	return p.engine.Tree(crateDir, excluded, true)
}

// record writes a journal entry when a journal is configured.
func (p *Pipeline) record(u *unit.Unit, fp fingerprint.Fingerprint, result UnitResult, duration time.Duration, success bool) {
	if p.journal == nil {
		return
	}

	digest := ""
	if len(fp) > 0 {
		digest = fp[0]
	}

	entry := journal.Entry{
		Slug:      u.Slug,
		Name:      u.Name,
		Kind:      u.Kind.String(),
		Digest:    digest,
		Rebuilt:   result.Rebuilt,
		Success:   success,
		Duration:  duration,
		Timestamp: time.Now(),
	}

	if err := p.journal.Record(entry); err != nil {
		p.logger.Warn("failed to record build journal entry", "unit", u.Slug, "err", err)
	}
}
