package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"coral/internal/accel"
	"coral/internal/colorsrc"
	"coral/internal/engine"
	"coral/internal/score"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestFromMap(t *testing.T) {
	c := FromMap(map[string]string{
		"w":         "64",
		"h":         "32",
		"depth":     "4",
		"seed":      "-9",
		"source":    "hue",
		"engine":    "reference",
		"agg":       "min",
		"batch_abs": "16",
		"batch_rel": "not a number",
		"hud":       "false",
	})
	require.Equal(t, 64, c.Width)
	require.Equal(t, 32, c.Height)
	require.Equal(t, 4, c.BitDepth)
	require.Equal(t, int64(-9), c.Seed)
	require.Equal(t, "hue", c.Source)
	require.Equal(t, "reference", c.Engine)
	require.Equal(t, "min", c.Aggregation)
	require.Equal(t, 16, c.Batch.Absolute)
	require.Equal(t, DefaultConfig().Batch.Relative, c.Batch.Relative)
	require.False(t, c.Viewer.HUD)
	require.NoError(t, c.Validate())

	require.Equal(t, DefaultConfig(), FromMap(nil))
}

func TestValidateReportsEveryField(t *testing.T) {
	c := DefaultConfig()
	c.BitDepth = 0
	c.Width = -1
	c.Source = "rainbow"
	c.Batch.Relative = 0
	c.Log.Level = "loud"

	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	require.Len(t, joined.Unwrap(), 5)
	require.ErrorContains(t, err, "'bitDepth' must be in 1..8, got 0")

	c = DefaultConfig()
	c.BitDepth = 9
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestEngineOptions(t *testing.T) {
	c := FromMap(map[string]string{"w": "8", "h": "8", "depth": "2", "engine": "reference", "agg": "min", "slots": "3"})
	opts, err := c.EngineOptions()
	require.NoError(t, err)
	require.Equal(t, engine.Reference, opts.Kind)
	require.Equal(t, score.Min, opts.Aggregation)
	require.Equal(t, 3, opts.Slots)
	require.Equal(t, colorsrc.Count(2), opts.Source.Len())

	c.Aggregation = "average"
	opts, err = c.EngineOptions()
	require.NoError(t, err)
	require.Equal(t, score.Average, opts.Aggregation)

	c.Source = "bogus"
	_, err = c.EngineOptions()
	require.Error(t, err)
}

func TestParameters(t *testing.T) {
	p := DefaultConfig().Parameters()
	v, ok := p.Lookup("colors")
	require.True(t, ok)
	require.Equal(t, "262144", v)
	_, ok = p.Lookup("missing")
	require.False(t, ok)
}

func TestDeviceOptionsScalesPagesToHeap(t *testing.T) {
	c := DefaultConfig()
	opts := c.DeviceOptions()
	require.Equal(t, accel.DefaultPageWords, opts.PageWords)
	require.Equal(t, c.Device.Slots, opts.QueueDepth)
	require.Len(t, opts.MemoryTypes, 3)

	c.Device.MemoryMB = 8
	opts = c.DeviceOptions()
	require.Equal(t, (8<<20)/16, opts.PageWords)
	require.Equal(t, uint64(8<<20), opts.MemoryTypes[0].HeapBytes)
}
