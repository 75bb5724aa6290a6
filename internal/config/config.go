package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultVerbose             = false
	DefaultDisableCache        = false
	DefaultCacheBust           = false
	DefaultCacheProductionOnly = false
	DefaultMetrics             = false
)

// Holds the configuration options for nodebuild
type Config struct {
	// Project directory containing package.json
	ProjectDir string

	// Root directory of the persistent cache for this project
	CacheRoot string

	// Skip all cache restore/save for this build
	DisableCache bool

	// Delete the cache before running
	CacheBust bool

	// Explicit list of directories to cache, overriding the
	// manager-determined default set
	CacheDirectories []string

	// Cache only production dependencies: prune before saving
	// instead of after
	CacheProductionOnly bool

	// Install the build metrics plugin into the build tree
	Metrics bool

	// Print the full dependency tree at summary time
	Verbose bool

	// File to write the structured metadata record to at build end.
	// Empty writes to stderr.
	MetadataOut string

	// Alternative registry for binary downloads
	RegistryMirror string
}

func Load() (*Config, error) {
	cfg := &Config{
		ProjectDir:          viper.GetString("project_dir"),
		CacheRoot:           viper.GetString("cache_root"),
		DisableCache:        viper.GetBool("disable_cache"),
		CacheBust:           viper.GetBool("cache_bust"),
		CacheDirectories:    viper.GetStringSlice("cache_directories"),
		CacheProductionOnly: viper.GetBool("cache_production_only"),
		Metrics:             viper.GetBool("metrics"),
		Verbose:             viper.GetBool("verbose"),
		MetadataOut:         viper.GetString("metadata_out"),
		RegistryMirror:      viper.GetString("registry_mirror"),
	}

	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	abs, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("invalid project directory: %v", err)
	}

	c.ProjectDir = abs

	// Cache roots are keyed per project so two projects never share entries
	if c.CacheRoot == "" {
		c.CacheRoot = filepath.Join(xdg.CacheHome, "nodebuild", projectKey(c.ProjectDir))
	} else {
		abs, err := filepath.Abs(c.CacheRoot)
		if err != nil {
			return fmt.Errorf("invalid cache root: %v", err)
		}

		c.CacheRoot = abs
	}

	if c.MetadataOut != "" {
		abs, err := filepath.Abs(c.MetadataOut)
		if err != nil {
			return fmt.Errorf("invalid metadata output path: %v", err)
		}

		c.MetadataOut = abs
	}

	for _, dir := range c.CacheDirectories {
		if filepath.IsAbs(dir) {
			return fmt.Errorf("cache directory must be relative to the project: %s", dir)
		}
	}

	return nil
}

// projectKey derives a stable cache key from the project path
func projectKey(dir string) string {
	sum := sha256.Sum256([]byte(dir))
	return hex.EncodeToString(sum[:8])
}
