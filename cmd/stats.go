package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/journal"
)

var statsCmd = &cobra.Command{
	Use:          "stats [project-root]",
	Short:        "Show build journal statistics",
	RunE:         runStats,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	statsCmd.Flags().String("slug", "", "Show the last build record for one unit slug")
}

func runStats(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, root)
	if err != nil {
		return err
	}

	j, err := journal.Open(filepath.Join(root, cfg.OutputDir))
	if err != nil {
		return err
	}
	defer j.Close()

	if slug, _ := cmd.Flags().GetString("slug"); slug != "" {
		return printUnitStats(j, slug)
	}

	count, size, err := j.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Units: %d\nArtifact size: %d bytes\n", count, size)

	entries, err := j.List()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		state := "fresh"
		if entry.Rebuilt {
			state = "rebuilt"
		}
		if !entry.Success {
			state = "failed"
		}

		fmt.Printf("  %-40s %-7s %s (%s)\n", entry.Slug, state, entry.Timestamp.Format("2006-01-02 15:04:05"), entry.Duration.Round(time.Millisecond))
	}

	return nil
}

// printUnitStats shows the full last-build record for a single slug.
func printUnitStats(j *journal.Journal, slug string) error {
	entry, err := j.Get(slug)
	if err != nil {
		return err
	}

	if entry == nil {
		return fmt.Errorf("no build recorded for %s", slug)
	}

	state := "fresh"
	if entry.Rebuilt {
		state = "rebuilt"
	}
	if !entry.Success {
		state = "failed"
	}

	fmt.Printf("Slug: %s\nName: %s\nKind: %s\nState: %s\nDigest: %s\nDuration: %s\nTimestamp: %s\n",
		entry.Slug, entry.Name, entry.Kind, state, entry.Digest, entry.Duration.Round(time.Millisecond), entry.Timestamp.Format("2006-01-02 15:04:05"))

	return nil
}
