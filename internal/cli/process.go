package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"livewidget/internal/logging"
	"livewidget/internal/models"
	"livewidget/pkg/lwdata"
	"livewidget/pkg/visualization"
)

type processFlags struct {
	settingsFile string
	saveSettings string
	preview      string
	layer        int

	filter    string
	operation string
	operand   string
	scalar    float64
	darkfield string
	flat      string
	despeckle bool
	threshold float64
	logScale  bool
}

func (a *app) processCommand() *cobra.Command {
	var f processFlags
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Apply corrections, filters and stack operations",
		Long: `process runs the same pipeline as the live view: darkfield subtraction,
flat-field normalization, the image operation, the image filter and
despeckling, always starting from the loaded data. Settings can come from
a preset file, flags override them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []lwdata.Option
			if f.settingsFile != "" {
				s, err := lwdata.LoadSettings(f.settingsFile)
				if err != nil {
					return err
				}
				opts = append(opts, lwdata.WithSettings(s))
			}
			d, _, err := a.open(args[0], opts...)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, d); err != nil {
				return err
			}
			if err := d.SetCurrentLayer(f.layer); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			lo, hi := d.Range()
			fmt.Fprintf(out, "  Dimensions:  %d x %d x %d\n", d.Width(), d.Height(), d.Depth())
			fmt.Fprintf(out, "  Layer:       %d\n", d.CurrentLayer())
			fmt.Fprintf(out, "  %-12s min %g  max %g  range [%g, %g]\n", d.ValueLabel()+":", d.Min(), d.Max(), lo, hi)

			if f.saveSettings != "" {
				if err := lwdata.SaveSettings(d.Settings(), f.saveSettings); err != nil {
					return err
				}
				logging.Info("settings written to %s", f.saveSettings)
			}
			if f.preview != "" {
				if err := visualization.NewRaster(d).SaveJPEG(f.preview); err != nil {
					return fmt.Errorf("write preview: %w", err)
				}
				logging.Info("preview written to %s", f.preview)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.settingsFile, "settings", "", "settings preset to start from")
	fl.StringVar(&f.saveSettings, "save-settings", "", "write the resulting settings as a preset")
	fl.StringVar(&f.preview, "preview", "", "write the presented layer as JPEG")
	fl.IntVarP(&f.layer, "layer", "l", 0, "layer to report")
	fl.StringVar(&f.filter, "filter", "", "image filter (none, median, hybrid-median, despeckle)")
	fl.StringVar(&f.operation, "op", "", "image operation, e.g. stack-average or divide")
	fl.StringVar(&f.operand, "operand", "", "reference file for pixelwise operations")
	fl.Float64Var(&f.scalar, "scalar", 1, "factor for multiply-by-scalar")
	fl.StringVar(&f.darkfield, "darkfield", "", "subtract this darkfield file")
	fl.StringVar(&f.flat, "normalize", "", "normalize by this flat-field file")
	fl.BoolVar(&f.despeckle, "despeckle", false, "suppress isolated spikes")
	fl.Float64Var(&f.threshold, "threshold", 0, "despeckle threshold")
	fl.BoolVar(&f.logScale, "log", false, "present log10 counts")
	return cmd
}

// apply pushes the flags given on the command line through the setters.
func (f *processFlags) apply(cmd *cobra.Command, d *lwdata.Data) error {
	changed := cmd.Flags().Changed

	if changed("log") {
		if err := d.SetLogScale(f.logScale); err != nil {
			return err
		}
	}
	if changed("threshold") {
		if err := d.SetDespeckleThreshold(f.threshold); err != nil {
			return err
		}
	}
	if changed("darkfield") {
		if err := d.SetDarkfieldReference(f.darkfield, f.darkfield != ""); err != nil {
			return err
		}
	}
	if changed("normalize") {
		if err := d.SetNormalizeReference(f.flat, f.flat != ""); err != nil {
			return err
		}
	}
	if changed("operand") {
		if err := d.SetOperationReference(f.operand); err != nil {
			return err
		}
	}
	if changed("scalar") {
		if err := d.SetOperationScalar(f.scalar); err != nil {
			return err
		}
	}
	if changed("op") {
		op, err := models.ParseImageOperation(f.operation)
		if err != nil {
			return err
		}
		if op.IsPixelwise() && d.Settings().Processing.OperationFile == "" {
			return fmt.Errorf("%w: %s needs --operand", models.ErrInvalidArgument, op)
		}
		if err := d.SetImageOperation(op); err != nil {
			return err
		}
	}
	if changed("filter") {
		kind, err := models.ParseImageFilter(f.filter)
		if err != nil {
			return err
		}
		if err := d.SetImageFilter(kind); err != nil {
			return err
		}
	}
	if changed("despeckle") {
		if err := d.SetDespeckle(f.despeckle); err != nil {
			return err
		}
	}
	return nil
}
