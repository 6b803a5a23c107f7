// Package cli implements the plantpipe command-line interface.
//
// This package provides commands for rendering PlantUML diagrams through a
// locally installed renderer, inspecting cache keys, managing the artifact
// cache, and running the local HTTP facade. The CLI is built using cobra and
// supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - render: render a diagram to ascii, png, or svg
//   - map: emit the clickable image map for a diagram
//   - decode: recover diagram source from a cache key
//   - cache: manage the artifact cache (clear, path, prune)
//   - doctor: check the renderer installation end to end
//   - serve: run the local HTTP facade
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Configuration
// is read from --config, $PLANTPIPE_CONFIG, or ~/.config/plantpipe/config.toml.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/pkg/buildinfo"
	"github.com/plantpipe/plantpipe/pkg/cache"
	"github.com/plantpipe/plantpipe/pkg/config"
	"github.com/plantpipe/plantpipe/pkg/pipeline"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// appName is the application name used for directories and display.
const appName = "plantpipe"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config
}

// New creates a new CLI instance with a default logger and configuration.
// The configuration is replaced from file before any command runs.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          appName,
		Short:        "Plantpipe renders PlantUML diagrams through a cached local renderer",
		Long:         `Plantpipe pipes PlantUML diagram source through a locally installed renderer and caches every artifact under a deterministic, URL-safe key, so identical source never renders twice.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(configPath)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default ~/.config/plantpipe/config.toml)")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.mapCommand())
	root.AddCommand(c.decodeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.doctorCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig resolves the configuration: an explicit path must load, the
// default locations may be absent.
func (c *CLI) loadConfig(path string) error {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner assembles the render pipeline from the loaded configuration.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	store, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	renderer := plantuml.NewRenderer(c.Config.Renderer.Settings(), c.Logger)
	return pipeline.NewRunner(store, renderer, c.Logger), nil
}

// newCache opens the configured cache backend.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}

	cfg := c.Config.Cache
	switch cfg.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendMemory:
		return cache.NewMemoryCache(), nil
	case config.BackendFile:
		dir, err := c.fileCacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	case config.BackendSQLite:
		path, err := c.sqlitePath()
		if err != nil {
			return nil, err
		}
		return cache.NewSQLiteCache(path)
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case config.BackendMongo:
		return cache.NewMongoCache(ctx, cache.MongoOptions{
			URI:        cfg.MongoDB.URI,
			Database:   cfg.MongoDB.Database,
			Collection: cfg.MongoDB.Collection,
		})
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// =============================================================================
// Paths
// =============================================================================

// fileCacheDir resolves the file backend's directory: the configured one, or
// the XDG cache directory.
func (c *CLI) fileCacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return cacheDir()
}

// sqlitePath resolves the sqlite backend's database file, creating the parent
// directory when falling back to the XDG cache directory.
func (c *CLI) sqlitePath() (string, error) {
	if c.Config.Cache.SQLite.Path != "" {
		return c.Config.Cache.SQLite.Path, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// cacheDir returns the cache directory using XDG standard (~/.cache/plantpipe/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
