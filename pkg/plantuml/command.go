// Package plantuml locates, launches and supervises the PlantUML renderer.
//
// The renderer is an external process. It receives diagram source on stdin,
// writes the rendered artifact to stdout and diagnostics to stderr. This
// package resolves the configured executable into a runnable command
// (expanding ~, handling .jar archives that need a java runtime) and
// interprets the process's exit status, including PlantUML's habit of
// drawing error messages as images.
package plantuml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Defaults for the renderer toolchain.
const (
	// DefaultJavaPath runs .jar renderers via whatever java is on PATH.
	DefaultJavaPath = "java"

	// DefaultDotPath is a sentinel: while it is in effect the renderer
	// locates Graphviz dot on its own and no -graphvizdot flag is passed.
	// Forcing the default path explicitly breaks installations where dot
	// is on PATH but not at a fixed location.
	DefaultDotPath = "dot"
)

// headlessFlag keeps the renderer from initializing a display. The java
// runtime only honors it before -jar; PlantUML itself accepts it as a
// regular argument.
const headlessFlag = "-Djava.awt.headless=true"

// Settings configures how the renderer executable is located and launched.
type Settings struct {
	// JarPath is the renderer executable: a PlantUML .jar archive or a
	// directly runnable binary. May be absolute, relative (resolved
	// against the render's base directory) or ~-prefixed.
	JarPath string

	// JavaPath is the java binary used to run .jar renderers.
	// Empty means DefaultJavaPath.
	JavaPath string

	// DotPath optionally pins the Graphviz dot binary. Left empty or at
	// DefaultDotPath, the renderer auto-detects dot.
	DotPath string
}

// Command is a resolved renderer invocation: the binary to start and the
// fixed argument prefix shared by every render mode. Mode-specific flags
// (output format, pipe flags) are appended by the caller per invocation.
type Command struct {
	Path string
	Args []string
}

// String renders the full command line for log output.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// ResolveCommand turns Settings into a runnable Command.
//
// The executable path is expanded and resolved first: "~" and "~/..."
// expand against the user's home directory, relative paths resolve against
// baseDir, absolute paths pass through unchanged. An empty path is
// ErrConfiguration. Commands are resolved fresh on every render; settings
// may change between calls and resolution is cheap.
func ResolveCommand(s Settings, baseDir string) (Command, error) {
	path := strings.TrimSpace(s.JarPath)
	if path == "" {
		return Command{}, fmt.Errorf("%w: executable path is empty", ErrConfiguration)
	}

	switch {
	case path == "~" || strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return Command{}, fmt.Errorf("%w: expand ~ in executable path: %v", ErrConfiguration, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	case !filepath.IsAbs(path):
		path = filepath.Join(baseDir, path)
	}

	var cmd Command
	if strings.EqualFold(filepath.Ext(path), ".jar") {
		java := strings.TrimSpace(s.JavaPath)
		if java == "" {
			java = DefaultJavaPath
		}
		// The java runtime rejects -D flags placed after -jar.
		cmd = Command{Path: java, Args: []string{headlessFlag, "-jar", path}}
	} else {
		cmd = Command{Path: path, Args: []string{headlessFlag}}
	}

	cmd.Args = append(cmd.Args, "-charset", "utf-8")
	if dot := strings.TrimSpace(s.DotPath); dot != "" && dot != DefaultDotPath {
		cmd.Args = append(cmd.Args, "-graphvizdot", dot)
	}
	return cmd, nil
}
