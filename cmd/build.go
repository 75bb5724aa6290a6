package cmd

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/nodebuild/internal/build"
	"github.com/Norgate-AV/nodebuild/internal/cache"
	"github.com/Norgate-AV/nodebuild/internal/config"
	"github.com/Norgate-AV/nodebuild/internal/console"
	"github.com/Norgate-AV/nodebuild/internal/installer"
	"github.com/Norgate-AV/nodebuild/internal/metadata"
)

var buildCmd = &cobra.Command{
	Use:          "build [project-dir]",
	Short:        "Build a Node.js project",
	Long:         `Run the full build sequence against the given project directory (default: current directory).`,
	RunE:         runBuild,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	con := console.New(os.Stdout)

	// Build-scoped scratch space for the toolchain and metadata record
	scratch, err := os.MkdirTemp("", "nodebuild-")
	if err != nil {
		return err
	}

	defer os.RemoveAll(scratch)

	meta, err := metadata.Open(scratch)
	if err != nil {
		return err
	}

	defer meta.Close()

	tools := installer.New(filepath.Join(scratch, "toolchain"), cfg.RegistryMirror)
	store := cache.NewStore(cfg.CacheRoot)

	return build.New(cfg, con, meta, tools, store).Run()
}
