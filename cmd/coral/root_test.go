//go:build !ebiten

package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"coral/internal/config"
)

func prepareTempConfigFile(t *testing.T, contents string) {
	t.Helper()
	_, err := os.Stat("/etc/coral/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/coral/config.yaml would disturb test result.")

	home := t.TempDir()
	t.Setenv("HOME", home)
	if contents == "" {
		return
	}
	dir := filepath.Join(home, ".coral")
	require.NoError(t, os.Mkdir(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))
}

func TestReadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	prepareTempConfigFile(t, "")

	cmd := NewRootCommand()
	cmd.PreRun(cmd, nil)
	cfg, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig(), *cfg)
}

func TestReadConfigPrecedence(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	prepareTempConfigFile(t, `
width: 40
height: 30
batch:
  absolute: 7
device:
  slots: 3
log:
  level: warn
`)
	t.Setenv("CORAL_HEIGHT", "20")
	t.Setenv("CORAL_BATCH_RELATIVE", "5")

	cmd := NewRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--width", "10"}))
	cmd.PreRun(cmd, nil)
	cfg, err := ReadConfig()
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Width)
	require.Equal(t, 20, cfg.Height)
	require.Equal(t, 7, cfg.Batch.Absolute)
	require.Equal(t, 5, cfg.Batch.Relative)
	require.Equal(t, 3, cfg.Device.Slots)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, config.DefaultConfig().BitDepth, cfg.BitDepth)
}

func TestHeadlessRunWritesCanvas(t *testing.T) {
	for _, kind := range []string{"reference", "accelerated"} {
		t.Run(kind, func(t *testing.T) {
			viper.Reset()
			t.Chdir(t.TempDir())
			prepareTempConfigFile(t, "")
			out := filepath.Join(t.TempDir(), "canvas.png")

			cmd := NewRootCommand()
			cmd.SetArgs([]string{
				"--width", "12", "--height", "10", "--bit-depth", "3",
				"--engine", kind, "--log-level", "none", "--output", out,
			})
			require.NoError(t, cmd.Execute())

			f, err := os.Open(out)
			require.NoError(t, err)
			defer f.Close()
			img, err := png.Decode(f)
			require.NoError(t, err)
			require.Equal(t, 12, img.Bounds().Dx())
			require.Equal(t, 10, img.Bounds().Dy())
			for y := 0; y < 10; y++ {
				for x := 0; x < 12; x++ {
					_, _, _, a := img.At(x, y).RGBA()
					require.Equal(t, uint32(0xffff), a, "pixel (%d,%d) was never placed", x, y)
				}
			}
		})
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	prepareTempConfigFile(t, "")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--bit-depth", "9", "--log-level", "none"})
	cmd.SilenceErrors = true
	require.ErrorIs(t, cmd.Execute(), config.ErrInvalid)
}
