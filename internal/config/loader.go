package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration specifically for build operations
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(args)
	l.bindCommandFlags(cmd)

	if len(args) > 0 {
		viper.Set("project_dir", args[0])
	}

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("disable_cache", DefaultDisableCache)
	viper.SetDefault("cache_bust", DefaultCacheBust)
	viper.SetDefault("cache_production_only", DefaultCacheProductionOnly)
	viper.SetDefault("metrics", DefaultMetrics)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	globalDir := filepath.Join(xdg.ConfigHome, "nodebuild")

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration from the project directory
func (l *Loader) loadLocalConfig(args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(absDir)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.ReadInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	_ = viper.BindPFlag("disable_cache", cmd.Flags().Lookup("no-cache"))
	_ = viper.BindPFlag("cache_bust", cmd.Flags().Lookup("cache-bust"))
	_ = viper.BindPFlag("cache_directories", cmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("cache_production_only", cmd.Flags().Lookup("production-cache"))
	_ = viper.BindPFlag("metadata_out", cmd.Flags().Lookup("metadata-out"))
}
