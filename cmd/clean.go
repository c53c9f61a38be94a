package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustlink/rustlink/internal/cache"
	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/journal"
)

var cleanCmd = &cobra.Command{
	Use:          "clean [project-root]",
	Short:        "Remove compiled artifacts, hash records and the build journal",
	RunE:         runClean,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, root)
	if err != nil {
		return err
	}

	outputDir := filepath.Join(root, cfg.OutputDir)

	for _, dir := range []string{"libs", "hash"} {
		if err := os.RemoveAll(filepath.Join(outputDir, dir)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}

	if err := os.Remove(cache.ConfigRecordPath(root, cfg.OutputDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove configuration record: %w", err)
	}

	// Reset the journal only if one exists
	if _, err := os.Stat(filepath.Join(outputDir, journal.DBName)); err == nil {
		j, err := journal.Open(outputDir)
		if err != nil {
			return err
		}
		defer j.Close()

		if err := j.Clear(); err != nil {
			return fmt.Errorf("failed to clear journal: %w", err)
		}
	}

	fmt.Printf("Cleaned %s\n", outputDir)

	return nil
}
