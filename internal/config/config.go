package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultManifestName = "rustlink.json"
	DefaultOutputDir    = ".rustlink"
	DefaultForce        = false
	DefaultSilent       = false
	DefaultVerbose      = false
)

// Holds the configuration options for rustlink
type Config struct {
	// Path to the symbol manifest declaring import units
	ManifestPath string

	// Output directory for artifacts and hash records, relative to the
	// project root
	OutputDir string

	// Force recompilation regardless of cache freshness
	Force bool

	// Extra arguments passed to rustc for single-file units
	RustcArgs []string

	// Extra arguments passed to cargo build for crate units
	CargoArgs []string

	// Suppress toolchain console output
	Silent bool

	// Enable verbose output
	Verbose bool
}

func Load() (*Config, error) {
	cfg := &Config{
		ManifestPath: viper.GetString("manifest"),
		OutputDir:    viper.GetString("out_dir"),
		Force:        viper.GetBool("force"),
		RustcArgs:    viper.GetStringSlice("rustc_args"),
		CargoArgs:    viper.GetStringSlice("cargo_args"),
		Silent:       viper.GetBool("silent"),
		Verbose:      viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = DefaultManifestName
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if abs, err := filepath.Abs(c.ManifestPath); err == nil {
		c.ManifestPath = abs
	}

	// The output directory stays relative: artifact and record paths are
	// derived from it per project root
	if filepath.IsAbs(c.OutputDir) {
		return fmt.Errorf("output directory must be relative to the project root: %s", c.OutputDir)
	}

	if strings.HasPrefix(filepath.ToSlash(c.OutputDir), "../") {
		return fmt.Errorf("output directory must not escape the project root: %s", c.OutputDir)
	}

	return nil
}

// Fingerprint serializes the build-relevant configuration into a single
// opaque value: toolchain arguments, output directory and recompilation
// policy. Any change to it invalidates every unit's cache on the next run.
func (c *Config) Fingerprint() string {
	return strings.Join([]string{
		"out=" + c.OutputDir,
		"rustc=" + quoteArgs(c.RustcArgs),
		"cargo=" + quoteArgs(c.CargoArgs),
		fmt.Sprintf("force=%t", c.Force),
	}, "|")
}

// quoteArgs serializes an argument list with element boundaries preserved:
// the single argument "-C opt-level=3" and the pair "-C", "opt-level=3"
// must serialize differently.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = strconv.Quote(arg)
	}

	return strings.Join(quoted, ",")
}
