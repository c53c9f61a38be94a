package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rustlink/rustlink/internal/config"
	"github.com/rustlink/rustlink/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "rustlink",
	Short:        "Incremental compiler for native Rust imports",
	Long:         `Compile the Rust import units a bundler project declares into dynamic libraries, rebuilding only what changed.`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().StringP("manifest", "m", "", "Path to the symbol manifest declaring import units")
	rootCmd.PersistentFlags().StringP("out-dir", "o", "", "Output directory for artifacts and hash records")
	rootCmd.PersistentFlags().BoolP("force", "f", false, "Force recompilation of every unit")
	rootCmd.PersistentFlags().StringSlice("rustc-arg", []string{}, "Extra arguments for rustc")
	rootCmd.PersistentFlags().StringSlice("cargo-arg", []string{}, "Extra arguments for cargo build")
	rootCmd.PersistentFlags().BoolP("silent", "s", false, "Suppress toolchain console output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statsCmd)

	viper.SetDefault("manifest", config.DefaultManifestName)
	viper.SetDefault("out_dir", config.DefaultOutputDir)
	viper.SetDefault("force", config.DefaultForce)
	viper.SetDefault("silent", config.DefaultSilent)
	viper.SetDefault("verbose", config.DefaultVerbose)
}
