package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print dimensions, size and digest of a detector file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, frame, err := a.open(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			pixels := uint64(d.Original().Len())
			fmt.Fprintf(out, "  File:        %s\n", args[0])
			fmt.Fprintf(out, "  Type:        %s\n", frame.Type)
			fmt.Fprintf(out, "  Size:        %s\n", humanize.Bytes(uint64(frame.Size)))
			fmt.Fprintf(out, "  Digest:      %s\n", frame.DigestString())
			fmt.Fprintf(out, "  Dimensions:  %d x %d x %d\n", d.Width(), d.Height(), d.Depth())
			fmt.Fprintf(out, "  Pixels:      %s (%s in memory)\n", humanize.Comma(int64(pixels)), humanize.IBytes(pixels*4))

			for z := 0; z < d.Depth(); z++ {
				if err := d.SetCurrentLayer(z); err != nil {
					return err
				}
				fmt.Fprintf(out, "  Layer %-4d   min %g  max %g\n", z, d.Min(), d.Max())
			}
			return nil
		},
	}
}
