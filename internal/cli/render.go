package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/pkg/pipeline"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	format  string // output format: ascii, png, svg
	output  string // output file path ("-" for stdout, empty to derive from input)
	withMap bool   // write the image map next to the PNG artifact
	html    bool   // wrap the artifact in a standalone HTML page
	noCache bool   // bypass the cache entirely
	refresh bool   // re-render even on a cache hit, overwriting the stored artifact
}

// renderCommand creates the render command, the main entry point of the CLI.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{format: string(plantuml.FormatSVG)}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a PlantUML diagram to ascii, png, or svg",
		Long: `Render a PlantUML diagram through the locally installed renderer.

Diagram source is read from the given file, or from stdin when the argument
is "-" or omitted. The artifact is written next to the input with the
format's extension, or to --output. Artifacts are cached by diagram source,
so rendering unchanged source never launches the renderer again.

Examples:
  plantpipe render diagram.puml                  # writes diagram.svg
  plantpipe render -f png diagram.puml --map     # diagram.png + diagram.cmapx
  cat diagram.puml | plantpipe render -f ascii   # ascii art on stdout
  plantpipe render diagram.puml --html -o out.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := plantuml.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return c.runRender(cmd.Context(), input, format, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg (default), png, ascii")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file ("-" for stdout, default derives from input)`)
	cmd.Flags().BoolVar(&opts.withMap, "map", false, "also write the clickable image map (png only)")
	cmd.Flags().BoolVar(&opts.html, "html", false, "emit a standalone HTML page embedding the artifact")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even if cached, overwriting the stored artifact")

	return cmd
}

// runRender reads the diagram source, renders it through the pipeline, and
// writes the artifact plus optional sidecars.
func (c *CLI) runRender(ctx context.Context, input string, format plantuml.Format, opts *renderOpts) error {
	source, workDir, err := readSource(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spin := newSpinner(ctx, fmt.Sprintf("Rendering %s diagram", format))
	spin.Start()

	start := time.Now()
	res, err := runner.Render(ctx, pipeline.Request{
		Source:  source,
		Format:  format,
		WorkDir: workDir,
		Refresh: opts.refresh,
	})
	elapsed := time.Since(start)
	if err != nil {
		spin.StopWithError("Render failed")
		if errors.Is(err, plantuml.ErrLaunch) || errors.Is(err, plantuml.ErrConfiguration) {
			printNextStep("Check the renderer installation", appName+" doctor")
		}
		return err
	}
	spin.Stop()

	dest := outputPath(input, opts.output, format, opts.html)
	out, err := openOutput(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	presenter := pipeline.Presenter(pipeline.RawPresenter{W: out})
	if opts.html {
		presenter = pipeline.HTMLPresenter{W: out}
	}
	if err := res.Present(presenter); err != nil {
		return err
	}

	mapPath, err := writeMapSidecar(res, dest, opts.withMap)
	if err != nil {
		return err
	}

	if dest == "" {
		return nil
	}
	printSuccess("Rendered %s diagram", format)
	printFile(dest)
	if mapPath != "" {
		printFile(mapPath)
	}
	printRenderStats(len(res.Artifact), res.CacheHit, elapsed)
	return nil
}

// readSource loads diagram source from path, or stdin when path is "-".
// The returned workDir anchors relative renderer paths and include
// directives: the input file's directory, or the current directory for stdin.
func readSource(path string) (source, workDir string, err error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), ".", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), filepath.Dir(path), nil
}

// outputPath derives the artifact destination. An explicit --output wins,
// stdin input defaults to stdout, and file input lands next to the input with
// the format's extension. Empty means stdout.
func outputPath(input, output string, format plantuml.Format, html bool) string {
	if output == "-" {
		return ""
	}
	if output != "" {
		return output
	}
	if input == "-" {
		return ""
	}
	ext := format.Ext()
	if html {
		ext = ".html"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

// writeMapSidecar stores the image map next to the artifact using the .cmapx
// extension. Maps only exist for PNG renders and need a file destination.
func writeMapSidecar(res *pipeline.Result, dest string, withMap bool) (string, error) {
	if !withMap {
		return "", nil
	}
	if res.Format != plantuml.FormatPNG {
		printWarning("--map only applies to png output")
		return "", nil
	}
	if dest == "" {
		printWarning("--map needs a file destination, skipping image map")
		return "", nil
	}
	mapPath := strings.TrimSuffix(dest, filepath.Ext(dest)) + ".cmapx"
	if err := os.WriteFile(mapPath, []byte(res.Map), 0o644); err != nil {
		return "", fmt.Errorf("write image map: %w", err)
	}
	return mapPath, nil
}

// nopCloser wraps an io.Writer with a no-op Close method.
// It is used to make os.Stdout compatible with io.WriteCloser.
type nopCloser struct{ io.Writer }

// Close implements io.Closer with a no-op.
func (nopCloser) Close() error { return nil }

// openOutput returns a WriteCloser for the given path.
// If path is empty, it returns os.Stdout wrapped in nopCloser.
// Otherwise, it creates the file at path, overwriting if it exists.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
