package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/pkg/pipeline"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// mapCommand creates the map command for extracting clickable image maps.
func (c *CLI) mapCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "map [file]",
		Short: "Emit the clickable image map for a diagram",
		Long: `Render the HTML image map paired with a diagram's PNG artifact.

The map comes from the same cached render as the PNG itself, so a later
"render -f png" of identical source is served from the cache. Diagrams
without link regions produce empty output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return c.runMap(cmd.Context(), input, output, noCache, refresh)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the artifact cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-render even if cached")

	return cmd
}

// runMap renders the diagram as PNG and writes only the image map half of the
// pair.
func (c *CLI) runMap(ctx context.Context, input, output string, noCache, refresh bool) error {
	source, workDir, err := readSource(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	res, err := runner.Render(ctx, pipeline.Request{
		Source:  source,
		Format:  plantuml.FormatPNG,
		WorkDir: workDir,
		Refresh: refresh,
	})
	if err != nil {
		if errors.Is(err, plantuml.ErrLaunch) || errors.Is(err, plantuml.ErrConfiguration) {
			printNextStep("Check the renderer installation", appName+" doctor")
		}
		return err
	}
	if res.CacheHit {
		c.Logger.Debugf("Image map served from cache (key %s)", res.Key)
	} else {
		prog.done("Rendered image map")
	}

	if res.Map == "" {
		c.Logger.Warnf("Diagram has no link regions, image map is empty")
	}

	out, err := openOutput(outputTarget(output))
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.WriteString(out, res.Map); err != nil {
		return err
	}
	if output != "" && output != "-" {
		printFile(output)
	}
	return nil
}

// outputTarget normalizes the --output flag: "-" selects stdout like the
// empty default does.
func outputTarget(output string) string {
	if output == "-" {
		return ""
	}
	return output
}
