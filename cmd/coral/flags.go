package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// configKeys maps each flag to its key in config.yaml.
var configKeys = []struct{ flag, key string }{
	{"width", "width"},
	{"height", "height"},
	{"bit-depth", "bitDepth"},
	{"seed", "seed"},
	{"source", "source"},
	{"engine", "engine"},
	{"aggregation", "aggregation"},
	{"batch-absolute", "batch.absolute"},
	{"batch-relative", "batch.relative"},
	{"slots", "device.slots"},
	{"work-group-size", "device.workGroupSize"},
	{"workers", "device.workers"},
	{"memory-mb", "device.memoryMB"},
	{"scale", "viewer.scale"},
	{"hud", "viewer.hud"},
	{"log-format", "log.format"},
	{"log-level", "log.level"},
}

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(command *cobra.Command, args []string) {
		for _, k := range configKeys {
			MustBindPFlag(k.key, flags.Lookup(k.flag))
			MustBindEnv(k.key, "CORAL_"+envName(k.flag))
		}
	}
}

func envName(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
