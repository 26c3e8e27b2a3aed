// Package cli implements the livewidget command line.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"livewidget/internal/logging"
	"livewidget/internal/models"
	"livewidget/pkg/config"
	"livewidget/pkg/loader"
	"livewidget/pkg/lwdata"
)

var version = "0.1.0"

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	verbose    bool
	logLevel   string
	fileType   string
	rawFormat  string
	rawWidth   int
	rawHeight  int

	cfg *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "livewidget",
		Short: "Inspect and process neutron detector images",
		Long: `livewidget loads detector frames (CASCADE, FITS, TIFF, TOFTOF or raw
samples), applies darkfield, flat-field and stack operations, and reports
display ranges and histograms the way the live view presents them.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetVersionTemplate(fmt.Sprintf(
		"livewidget %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "livewidget.yaml", "configuration file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&a.fileType, "type", "t", "", "input file type (cascade, fits, toftof, tiff, raw); detected when empty")
	flags.StringVar(&a.rawFormat, "raw-format", "", "sample type of raw input, e.g. <u4")
	flags.IntVar(&a.rawWidth, "raw-width", 0, "width of raw input")
	flags.IntVar(&a.rawHeight, "raw-height", 0, "height of raw input")

	root.AddCommand(a.infoCommand(), a.histogramCommand(), a.processCommand(), a.configCommand())
	return root
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	if a.verbose {
		level = logging.LevelDebug
	}
	logging.SetLevel(level)
	logging.SetOutput(cmd.ErrOrStderr())
	logging.Debug("config %s, log level %s", a.configPath, logging.Level())
	return nil
}

// loaderOptions merges the raw input flags over the configuration.
func (a *app) loaderOptions() *loader.Options {
	opts := a.cfg.LoaderOptions()
	if a.rawFormat != "" {
		opts.Format = a.rawFormat
	}
	if a.rawWidth > 0 {
		opts.Width = a.rawWidth
	}
	if a.rawHeight > 0 {
		opts.Height = a.rawHeight
	}
	return opts
}

// open loads path and wraps it with the configured reference resolver and
// display defaults.
func (a *app) open(path string, opts ...lwdata.Option) (*lwdata.Data, *loader.Frame, error) {
	ft, err := models.ParseFileType(a.fileType)
	if err != nil {
		return nil, nil, err
	}
	frame, err := loader.LoadFile(path, ft, a.loaderOptions())
	if err != nil {
		return nil, nil, err
	}
	logging.Info("loaded %s as %s: %v", path, frame.Type, frame.Store)

	settings := lwdata.DefaultSettings()
	settings.LogScale = a.cfg.Display.LogScale
	settings.Processing.DespeckleThreshold = a.cfg.Processing.DespeckleThreshold

	base := []lwdata.Option{
		lwdata.WithResolver(lwdata.FileResolver(a.cfg.Processing.ReferenceDir, a.loaderOptions())),
		lwdata.WithReferenceCacheSize(a.cfg.Processing.ReferenceCacheSize),
		lwdata.WithSettings(settings),
	}
	d, err := lwdata.New(frame.Store, append(base, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return d, frame, nil
}
