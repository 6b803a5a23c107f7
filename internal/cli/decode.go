package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plantpipe/plantpipe/pkg/encoder"
)

// decodeCommand creates the decode command for inspecting cache keys.
func (c *CLI) decodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <key>",
		Short: "Recover diagram source from a cache key",
		Long: `Decode a cache key back into the PlantUML source it encodes.

Keys compress the diagram source itself, so decoding needs no cache
lookup: any key ever printed by render or serve can be turned back into
source, even after the cached artifact is gone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := encoder.Decode(args[0])
			if err != nil {
				return err
			}
			fmt.Print(source)
			if !strings.HasSuffix(source, "\n") {
				fmt.Println()
			}
			return nil
		},
	}
}
