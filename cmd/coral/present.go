//go:build ebiten

package main

import (
	"context"
	"errors"

	"github.com/hajimehoshi/ebiten/v2"

	"coral/internal/app"
	"coral/internal/config"
)

// present opens the viewer. Closing the window stops the engine after its
// in-flight batches are drained.
func present(ctx context.Context, s *session, cfg config.Config, _ string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r := s.start(ctx)
	defer func() { _ = r.Stop() }()

	game := app.New(r, cfg.Parameters(), cfg.Viewer.Scale, cfg.Viewer.HUD, s.log)
	size := s.engine.Size()

	ebiten.SetWindowTitle("coral - " + s.engine.Name())
	ebiten.SetWindowSize(size.W*cfg.Viewer.Scale, size.H*cfg.Viewer.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}
