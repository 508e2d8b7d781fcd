//go:build !ebiten

package main

import (
	"context"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"coral/internal/config"
	"coral/internal/core"
	"coral/internal/render"
	"coral/internal/ui"
)

const progressInterval = time.Second

// present runs the engine to completion or until interrupted, draining the
// commit queue into an image, and prints a summary.
func present(ctx context.Context, s *session, cfg config.Config, output string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	eng := s.engine
	pix := render.NewPixels(eng.Size(), color.Transparent)
	seed := eng.Seed()
	pix.Put(seed.Pos, seed.Color)
	placed := 1

	meter := core.NewThroughput(progressInterval)
	meter.Observe(placed)
	start := time.Now()

	r := s.start(ctx)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-r.Done():
			break loop
		case <-ticker.C:
			placed += pix.Apply(eng.Queue().Swap())
			meter.Observe(placed)
			s.log.Info("progress",
				zap.Int("placed", placed),
				zap.Int("total", eng.Size().Cells()),
				zap.String("rate", ui.FormatRate(meter.Rate())))
		}
	}
	err := r.Wait()
	placed += pix.Apply(eng.Queue().Swap())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := eng.Stats()
	fmt.Printf("%s: placed %d/%d in %s (%s px/s), %d conflicts, %d batches\n",
		eng.Name(), placed, eng.Size().Cells(), elapsed.Round(time.Millisecond),
		ui.FormatRate(core.AverageRate(placed, elapsed)), st.Conflicts, st.Batches)

	if output == "" {
		return nil
	}
	return writePNG(output, pix)
}

func writePNG(path string, pix *render.Pixels) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := png.Encode(f, pix.Image()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return f.Close()
}
