// Package config holds the run configuration shared by the CLI, the viewer
// and the sweep tool.
package config

import (
	"errors"
	"fmt"
	"strconv"

	"coral/internal/accel"
	"coral/internal/colorsrc"
	"coral/internal/core"
	"coral/internal/engine"
	"coral/internal/score"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MaxDimension bounds each canvas side.
const MaxDimension = 1 << 14

type BatchConfig struct {
	// Absolute caps the colors scored per batch.
	Absolute int `mapstructure:"absolute"`
	// Relative divides the frontier size to get the batch size.
	Relative int `mapstructure:"relative"`
}

type DeviceConfig struct {
	// Slots is the number of batches kept in flight.
	Slots         int `mapstructure:"slots"`
	WorkGroupSize int `mapstructure:"workGroupSize"`
	// Workers bounds the goroutines executing one dispatch, 0 for GOMAXPROCS.
	Workers       int `mapstructure:"workers"`
	MemoryMB      int `mapstructure:"memoryMB"`
}

type ViewerConfig struct {
	Scale int  `mapstructure:"scale"`
	HUD   bool `mapstructure:"hud"`
}

type LogConfig struct {
	// Format is 'text' or 'json'.
	Format string `mapstructure:"format"`
	// Level is one of 'none', 'debug', 'info', 'warn' or 'error'.
	Level  string `mapstructure:"level"`
}

// Config controls one coral run.
type Config struct {
	Width    int   `mapstructure:"width"`
	Height   int   `mapstructure:"height"`
	BitDepth int   `mapstructure:"bitDepth"`
	Seed     int64 `mapstructure:"seed"`

	// Source is 'shuffle' or 'hue'.
	Source      string `mapstructure:"source"`
	// Engine is 'accelerated' or 'reference'.
	Engine      string `mapstructure:"engine"`
	// Aggregation is 'mean', 'min' or 'average'.
	Aggregation string `mapstructure:"aggregation"`

	Batch  BatchConfig  `mapstructure:"batch"`
	Device DeviceConfig `mapstructure:"device"`
	Viewer ViewerConfig `mapstructure:"viewer"`
	Log    LogConfig    `mapstructure:"log"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{
		Width:       512,
		Height:      512,
		BitDepth:    6,
		Seed:        1337,
		Source:      colorsrc.KindShuffle.String(),
		Engine:      engine.Accelerated.String(),
		Aggregation: score.Mean.String(),
		Batch: BatchConfig{
			Absolute: engine.DefaultMaxBatchAbsolute,
			Relative: engine.DefaultMaxBatchRelative,
		},
		Device: DeviceConfig{
			Slots:         engine.DefaultSlots,
			WorkGroupSize: engine.DefaultWorkGroupSize,
			MemoryMB:      2048,
		},
		Viewer: ViewerConfig{Scale: 1, HUD: true},
		Log:    LogConfig{Format: "text", Level: "info"},
	}
}

// FromMap populates the config from a string map (flag-style key/value pairs).
// Unparseable values keep their defaults; Validate catches the rest.
func FromMap(cfg map[string]string) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"w", &c.Width},
		{"h", &c.Height},
		{"depth", &c.BitDepth},
		{"batch_abs", &c.Batch.Absolute},
		{"batch_rel", &c.Batch.Relative},
		{"slots", &c.Device.Slots},
		{"work_group", &c.Device.WorkGroupSize},
		{"workers", &c.Device.Workers},
		{"memory_mb", &c.Device.MemoryMB},
		{"scale", &c.Viewer.Scale},
	}
	for _, f := range ints {
		if v, ok := cfg[f.key]; ok {
			if parsed, err := strconv.Atoi(v); err == nil {
				*f.dst = parsed
			}
		}
	}
	if v, ok := cfg["seed"]; ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = parsed
		}
	}
	if v, ok := cfg["hud"]; ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.Viewer.HUD = parsed
		}
	}
	for key, dst := range map[string]*string{
		"source":     &c.Source,
		"engine":     &c.Engine,
		"agg":        &c.Aggregation,
		"log_format": &c.Log.Format,
		"log_level":  &c.Log.Level,
	} {
		if v, ok := cfg[key]; ok && v != "" {
			*dst = v
		}
	}
	return c
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Validate reports every problem with the configuration at once. The
// returned error wraps ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Width > MaxDimension {
		errs = append(errs, invalid("'width' must be in 1..%d, got %d", MaxDimension, c.Width))
	}
	if c.Height <= 0 || c.Height > MaxDimension {
		errs = append(errs, invalid("'height' must be in 1..%d, got %d", MaxDimension, c.Height))
	}
	if c.BitDepth < 1 || c.BitDepth > colorsrc.MaxBitDepth {
		errs = append(errs, invalid("'bitDepth' must be in 1..%d, got %d", colorsrc.MaxBitDepth, c.BitDepth))
	}
	if _, err := colorsrc.ParseKind(c.Source); err != nil {
		errs = append(errs, invalid("'source': %v", err))
	}
	if _, err := engine.ParseKind(c.Engine); err != nil {
		errs = append(errs, invalid("'engine': %v", err))
	}
	if _, err := score.ParseAggregation(c.Aggregation); err != nil {
		errs = append(errs, invalid("'aggregation': %v", err))
	}
	if c.Batch.Absolute < 1 {
		errs = append(errs, invalid("'batch.absolute' must be positive, got %d", c.Batch.Absolute))
	}
	if c.Batch.Relative < 1 {
		errs = append(errs, invalid("'batch.relative' must be positive, got %d", c.Batch.Relative))
	}
	if c.Device.Slots < 1 {
		errs = append(errs, invalid("'device.slots' must be positive, got %d", c.Device.Slots))
	}
	if c.Device.WorkGroupSize < 1 {
		errs = append(errs, invalid("'device.workGroupSize' must be positive, got %d", c.Device.WorkGroupSize))
	}
	if c.Device.Workers < 0 {
		errs = append(errs, invalid("'device.workers' must not be negative, got %d", c.Device.Workers))
	}
	if c.Device.MemoryMB < 1 {
		errs = append(errs, invalid("'device.memoryMB' must be positive, got %d", c.Device.MemoryMB))
	}
	if c.Viewer.Scale < 1 {
		errs = append(errs, invalid("'viewer.scale' must be positive, got %d", c.Viewer.Scale))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, invalid("'log.format' must be one of ['text', 'json']"))
	}
	switch c.Log.Level {
	case "none", "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error']"))
	}
	return errors.Join(errs...)
}

// NewSource builds the configured color source.
func (c Config) NewSource() (colorsrc.Source, error) {
	kind, err := colorsrc.ParseKind(c.Source)
	if err != nil {
		return nil, err
	}
	return colorsrc.New(kind, c.BitDepth, c.Seed)
}

// DeviceOptions returns the software accelerator settings. Small heaps get
// pages of a quarter heap so that they still hold several allocations.
func (c Config) DeviceOptions() accel.Options {
	heap := uint64(c.Device.MemoryMB) << 20
	pageWords := min(accel.DefaultPageWords, int(heap/4/4))
	return accel.Options{
		MemoryTypes: accel.DefaultMemoryTypes(heap),
		PageWords:   pageWords,
		Workers:     c.Device.Workers,
		QueueDepth:  c.Device.Slots,
	}
}

// EngineOptions returns engine options with a fresh color source. Device,
// Queue and Logger are left for the caller.
func (c Config) EngineOptions() (engine.Options, error) {
	kind, err := engine.ParseKind(c.Engine)
	if err != nil {
		return engine.Options{}, err
	}
	agg, err := score.ParseAggregation(c.Aggregation)
	if err != nil {
		return engine.Options{}, err
	}
	src, err := c.NewSource()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Kind:             kind,
		Width:            c.Width,
		Height:           c.Height,
		Source:           src,
		Aggregation:      agg,
		MaxBatchAbsolute: c.Batch.Absolute,
		MaxBatchRelative: c.Batch.Relative,
		Slots:            c.Device.Slots,
		WorkGroupSize:    c.Device.WorkGroupSize,
	}, nil
}

// Parameters describes the configuration for the HUD and start-up logs.
func (c Config) Parameters() core.ParameterSnapshot {
	itoa := strconv.Itoa
	return core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{Name: "Canvas", Params: []core.Parameter{
			{Key: "width", Label: "Width", Value: itoa(c.Width)},
			{Key: "height", Label: "Height", Value: itoa(c.Height)},
			{Key: "seed", Label: "Seed", Value: strconv.FormatInt(c.Seed, 10)},
		}},
		{Name: "Colors", Params: []core.Parameter{
			{Key: "source", Label: "Source", Value: c.Source},
			{Key: "bitDepth", Label: "Bit depth", Value: itoa(c.BitDepth)},
			{Key: "colors", Label: "Colors", Value: itoa(colorsrc.Count(c.BitDepth))},
		}},
		{Name: "Engine", Params: []core.Parameter{
			{Key: "engine", Label: "Engine", Value: c.Engine},
			{Key: "aggregation", Label: "Aggregation", Value: c.Aggregation},
			{Key: "batch.absolute", Label: "Max batch", Value: itoa(c.Batch.Absolute)},
			{Key: "batch.relative", Label: "Batch divisor", Value: itoa(c.Batch.Relative)},
			{Key: "device.slots", Label: "Slots", Value: itoa(c.Device.Slots)},
			{Key: "device.workGroupSize", Label: "Work group", Value: itoa(c.Device.WorkGroupSize)},
		}},
	}}
}
