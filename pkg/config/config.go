// Package config loads plantpipe settings from TOML files.
//
// Configuration is resolved in order: an explicit path (--config flag or the
// PLANTPIPE_CONFIG environment variable), then ~/.config/plantpipe/config.toml,
// then built-in defaults. A missing default file is not an error; a missing
// explicit file is.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// Cache backend names accepted in the [cache] section.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongodb"
	BackendNone   = "none"
)

// Config mirrors the structure of plantpipe.toml.
type Config struct {
	Renderer Renderer `toml:"renderer"`
	Cache    Cache    `toml:"cache"`
	Server   Server   `toml:"server"`
}

// Renderer configures the external PlantUML process.
type Renderer struct {
	// Jar is the renderer path: a .jar run under Java, or a native
	// executable. Relative paths resolve against the diagram's directory.
	Jar string `toml:"jar"`

	// Java is the Java runtime used for .jar renderers.
	Java string `toml:"java"`

	// Dot is the Graphviz dot executable. The default "dot" relies on
	// PATH lookup inside the renderer.
	Dot string `toml:"dot"`
}

// Settings converts the section into renderer settings.
func (r Renderer) Settings() plantuml.Settings {
	return plantuml.Settings{JarPath: r.Jar, JavaPath: r.Java, DotPath: r.Dot}
}

// Cache selects and configures the artifact store.
type Cache struct {
	Backend string  `toml:"backend"`
	Dir     string  `toml:"dir"` // file backend; empty means the XDG cache dir
	SQLite  SQLite  `toml:"sqlite"`
	Redis   Redis   `toml:"redis"`
	MongoDB MongoDB `toml:"mongodb"`
}

// SQLite configures the sqlite backend.
type SQLite struct {
	Path string `toml:"path"` // database file; empty means the XDG cache dir
}

// Redis configures the redis backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// MongoDB configures the mongodb backend.
type MongoDB struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Server configures the local HTTP facade.
type Server struct {
	Addr    string `toml:"addr"`
	WorkDir string `toml:"workdir"` // renderer working directory for served requests
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Renderer: Renderer{
			Jar:  "plantuml.jar",
			Java: plantuml.DefaultJavaPath,
			Dot:  plantuml.DefaultDotPath,
		},
		Cache: Cache{
			Backend: BackendFile,
			Redis:   Redis{Addr: "localhost:6379"},
		},
		Server: Server{
			Addr:    "localhost:8080",
			WorkDir: ".",
		},
	}
}

// Load reads the TOML file at path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the configuration from PLANTPIPE_CONFIG if set, otherwise
// from the default location. A missing default file yields Default().
func LoadDefault() (Config, error) {
	if path := os.Getenv("PLANTPIPE_CONFIG"); path != "" {
		return Load(path)
	}
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return Default(), nil
	}
	return Load(path)
}

// DefaultPath returns the default configuration file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "plantpipe", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "plantpipe", "config.toml"), nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis, BackendMongo, BackendNone:
		return nil
	}
	return fmt.Errorf("unknown cache backend %q (must be one of: memory, file, sqlite, redis, mongodb, none)", c.Cache.Backend)
}
