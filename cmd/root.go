package cmd

import (
	"fmt"
	"os"

	"github.com/Norgate-AV/nodebuild/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:          "nodebuild",
	Short:        "Node.js build orchestrator",
	Long:         `Builds a Node.js server artifact: installs the toolchain, restores the dependency cache, installs and prunes dependencies, and records build metadata.`,
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
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print the full dependency tree at summary time")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Skip all cache restore/save")
	rootCmd.PersistentFlags().Bool("cache-bust", false, "Delete the cache before running")
	rootCmd.PersistentFlags().StringSlice("cache-dir", []string{}, "Directories to cache, overriding the default set")
	rootCmd.PersistentFlags().Bool("production-cache", false, "Prune devDependencies before saving the cache")
	rootCmd.PersistentFlags().String("metadata-out", "", "File to write the build metadata record to")
	rootCmd.AddCommand(buildCmd)

	viper.SetDefault("verbose", false)
	viper.SetDefault("disable_cache", false)
	viper.SetDefault("cache_bust", false)
	viper.SetDefault("cache_production_only", false)
}
