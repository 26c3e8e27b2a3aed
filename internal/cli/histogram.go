package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"livewidget/internal/models"
)

func (a *app) histogramCommand() *cobra.Command {
	var (
		bins     int
		layer    int
		logScale bool
		bounds   []float64
	)
	cmd := &cobra.Command{
		Use:   "histogram <file>",
		Short: "Print the histogram of one layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := a.open(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("bins") {
				bins = a.cfg.Display.HistogramBins
			}
			if cmd.Flags().Changed("log") {
				if err := d.SetLogScale(logScale); err != nil {
					return err
				}
			}
			if len(bounds) > 0 {
				if len(bounds) != 2 {
					return fmt.Errorf("%w: --range takes lower,upper", models.ErrInvalidArgument)
				}
				if err := d.SetCustomRange(bounds[0], bounds[1]); err != nil {
					return err
				}
			}
			if err := d.SetCurrentLayer(layer); err != nil {
				return err
			}

			xs, ys, err := d.Histogram(bins)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			lo, hi := d.Range()
			fmt.Fprintf(out, "# layer %d, %s in [%g, %g], %d bins\n", layer, d.ValueLabel(), lo, hi, bins)
			for i := range xs {
				fmt.Fprintf(out, "%g\t%g\n", xs[i], ys[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&bins, "bins", "b", 256, "number of buckets")
	cmd.Flags().IntVarP(&layer, "layer", "l", 0, "layer to bin")
	cmd.Flags().BoolVar(&logScale, "log", false, "bin log10 counts")
	cmd.Flags().Float64SliceVar(&bounds, "range", nil, "custom display range lower,upper")
	return cmd
}
