package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/pkg/cache"
	"github.com/plantpipe/plantpipe/pkg/config"
)

// defaultPruneAge keeps a month of recently used diagrams around.
const defaultPruneAge = 30 * 24 * time.Hour

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cachePruneCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			janitor, cleanup, err := c.openJanitor(cmd)
			if err != nil || janitor == nil {
				return err
			}
			defer cleanup()

			removed, err := janitor.Wipe(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			printSuccess("Cleared %d cached entries", removed)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache lives on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch backend := c.Config.Cache.Backend; backend {
			case config.BackendFile:
				dir, err := c.fileCacheDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				fmt.Println(dir)
			case config.BackendSQLite:
				path, err := c.sqlitePath()
				if err != nil {
					return fmt.Errorf("get cache database: %w", err)
				}
				fmt.Println(path)
			default:
				printInfo("Cache backend %q keeps no local files", backend)
			}
			return nil
		},
	}
}

// cachePruneCommand creates the "cache prune" subcommand.
func (c *CLI) cachePruneCommand() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove diagrams that have not been used recently",
		Long: `Remove every cached diagram whose last access is older than --max-age.

Each diagram carries an access stamp refreshed on every cache hit, so
pruning keeps the diagrams you actually render and drops the rest. All
artifacts of a pruned diagram (png, svg, ascii, image map) go together.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			janitor, cleanup, err := c.openJanitor(cmd)
			if err != nil || janitor == nil {
				return err
			}
			defer cleanup()

			cutoff := time.Now().Add(-maxAge)
			pruned, err := janitor.Prune(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			printSuccess("Pruned %d diagrams", pruned)
			printDetail("Removed entries last used before %s", cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", defaultPruneAge, "remove diagrams not accessed within this duration")

	return cmd
}

// openJanitor opens the configured backend and asserts its maintenance
// interface. A nil Janitor with nil error means the backend has nothing to
// maintain (the none backend); callers should return silently.
func (c *CLI) openJanitor(cmd *cobra.Command) (cache.Janitor, func(), error) {
	store, err := c.newCache(cmd.Context(), false)
	if err != nil {
		return nil, nil, err
	}
	janitor, ok := store.(cache.Janitor)
	if !ok {
		store.Close()
		printInfo("Cache backend %q stores nothing", c.Config.Cache.Backend)
		return nil, nil, nil
	}
	return janitor, func() { store.Close() }, nil
}
