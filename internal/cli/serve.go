package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/internal/server"
)

// serveCommand creates the serve command for running the HTTP facade.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP facade",
		Long: `Serve rendered diagrams over HTTP.

GET  /render/{format}/{key}   artifact for an encoded diagram key
GET  /map/{key}               image map for an encoded diagram key
GET  /html/{key}              standalone page embedding the artifact
POST /render/{format}         diagram source in the body, redirects to its key
GET  /healthz                 liveness probe

Keys are the same URL-safe encoding printed by render and accepted by
decode, so artifacts rendered from the CLI are served from the shared
cache without rendering again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, localhost:8080)")

	return cmd
}

// runServe blocks until the listener fails or ctx is cancelled; cancellation
// drains in-flight requests before returning.
func (c *CLI) runServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = c.Config.Server.Addr
	}

	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return err
	}
	defer runner.Close()

	handler := server.New(runner, c.Logger, server.Options{
		WorkDir: c.Config.Server.WorkDir,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.Logger.Infof("Listening on http://%s", addr)
	printInfo("Try http://%s/render/svg/<key>", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	c.Logger.Infof("Server stopped")
	return nil
}
