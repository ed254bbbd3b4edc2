package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/psd2pptx/internal/config"
	"github.com/ivlev/psd2pptx/internal/engine"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "** ERROR: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	verbose    bool
	output     string
	canvas     string
	skip       string
	manifest   string
	keepTemp   bool
	stats      bool
}

func newRootCommand() *cobra.Command {
	var opts options
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "psd2pptx [flags] <document>",
		Short: "Convert a layered PSD document into a PowerPoint slide deck",
		Long: `psd2pptx flattens the layers of the canvas group into the slide master
background and turns every nested layer into a slide. Layers of the same
group build up cumulatively, one slide per layer, with a fade transition.

The document is a .psd file or a directory tree of PNG layers.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts, args[0])
			if err != nil {
				return err
			}
			log := engine.NewLogger(cfg.Verbose, cmd.OutOrStdout())
			return engine.Convert(cmd.Context(), cfg, log)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML file with option defaults")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "print progress messages")
	f.StringVarP(&opts.output, "output", "o", "", "output deck (default: document name with .pptx)")
	f.StringVarP(&opts.canvas, "canvas", "c", defaults.CanvasGroup, "name of the group flattened into the background")
	f.StringVarP(&opts.skip, "skip", "s", defaults.SkipPattern, "regular expression of layer paths to ignore")
	f.StringVar(&opts.manifest, "manifest", "", "write a YAML manifest of the conversion")
	f.BoolVar(&opts.keepTemp, "keep-temp", false, "keep the scratch directory")
	f.BoolVar(&opts.stats, "stats", false, "print a performance report")

	return cmd
}

// buildConfig starts from the defaults or the config file and applies the
// flags the user actually set.
func buildConfig(cmd *cobra.Command, opts options, input string) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
		}
	}

	f := cmd.Flags()
	if f.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if f.Changed("output") {
		cfg.OutputPath = opts.output
	}
	if f.Changed("canvas") {
		cfg.CanvasGroup = opts.canvas
	}
	if f.Changed("skip") {
		cfg.SkipPattern = opts.skip
	}
	if f.Changed("manifest") {
		cfg.ManifestPath = opts.manifest
	}
	if f.Changed("keep-temp") {
		cfg.KeepTemp = opts.keepTemp
	}
	if f.Changed("stats") {
		cfg.ShowStats = opts.stats
	}
	cfg.InputPath = input
	cfg.BuildVersion = Version

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConfig, err)
	}
	return cfg, nil
}
