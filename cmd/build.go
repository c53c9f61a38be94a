package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/journal"
	"github.com/rustlink/rustlink/internal/manifest"
	"github.com/rustlink/rustlink/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:          "build [project-root]",
	Short:        "Compile all declared import units",
	Long:         `Resolve every unit in the symbol manifest and recompile the stale ones.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func runBuild(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, root)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	m, err := manifest.Load(afero.NewOsFs(), cfg.ManifestPath)
	if err != nil {
		return err
	}

	options := []pipeline.Option{pipeline.WithLogger(logger)}
	if j, err := journal.Open(filepath.Join(root, cfg.OutputDir)); err != nil {
		logger.Warn("build journal unavailable", "err", err)
	} else {
		defer j.Close()
		options = append(options, pipeline.WithJournal(j))
	}

	results, err := pipeline.New(cfg, root, options...).Run(m)
	if err != nil {
		return err
	}

	rebuilt := 0
	for _, result := range results {
		if result.Rebuilt {
			rebuilt++
		}
	}

	logger.Info("build complete", "units", len(results), "rebuilt", rebuilt, "fresh", len(results)-rebuilt)

	return nil
}

// projectRoot resolves the optional positional argument, defaulting to the
// working directory.
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}

	return abs, nil
}

// newLogger builds the command logger honoring the verbosity settings.
func newLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "rustlink",
	})

	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	return logger
}
