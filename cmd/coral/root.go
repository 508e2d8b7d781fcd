package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coral/internal/config"
)

// NewRootCommand builds the coral command. Values are read from CLI flags,
// environment variables prefixed with CORAL, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CORAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/coral", "$HOME/.coral", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	cmd := &cobra.Command{
		Use:   "coral",
		Short: "Grow an image by placing every color next to its closest match",
		Long: `Grow an image by placing every color next to its closest match.

coral takes every color of an RGB cube in a chosen order and puts each one on
the empty boundary cell whose placed neighbors resemble it most. Without the
ebiten build tag the run is headless and reports its statistics when done.`,
		RunE:          run,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()

	flags.Int("width", defaults.Width, "canvas width in pixels")
	flags.Int("height", defaults.Height, "canvas height in pixels")
	flags.Int("bit-depth", defaults.BitDepth, "bits per channel; the run uses 2^(3*bit-depth) colors")
	flags.Int64("seed", defaults.Seed, "seed for the shuffled color order")

	flags.String("source", defaults.Source, "color order: 'shuffle' or 'hue'")
	flags.String("engine", defaults.Engine, "placement engine: 'accelerated' or 'reference'")
	flags.String("aggregation", defaults.Aggregation, "neighbor score aggregation: 'mean', 'min' or 'average'")

	flags.Int("batch-absolute", defaults.Batch.Absolute, "upper bound on colors scored per batch")
	flags.Int("batch-relative", defaults.Batch.Relative, "batch size is the frontier size divided by this")

	flags.Int("slots", defaults.Device.Slots, "batches kept in flight by the accelerated engine")
	flags.Int("work-group-size", defaults.Device.WorkGroupSize, "accelerator work-group size")
	flags.Int("workers", defaults.Device.Workers, "goroutines executing a dispatch (0 for GOMAXPROCS)")
	flags.Int("memory-mb", defaults.Device.MemoryMB, "accelerator heap size per memory type in MiB")

	flags.Int("scale", defaults.Viewer.Scale, "viewer pixel scale")
	flags.Bool("hud", defaults.Viewer.HUD, "show the viewer status panel")

	flags.String("log-format", defaults.Log.Format, "log format: 'text' or 'json'")
	flags.String("log-level", defaults.Log.Level, "log level: 'none', 'debug', 'info', 'warn' or 'error'")

	flags.String("output", "", "write the finished canvas to this PNG file (headless only)")

	cmd.PreRun = bindRunFlagsFunc(flags)

	return cmd
}
