//go:build ebiten

package app

import (
	"image/color"
	"time"

	"go.uber.org/zap"

	"coral/internal/core"
	"coral/internal/engine"
	"coral/internal/logger"
	"coral/internal/render"
	"coral/internal/ui"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const hudWidth = 220

// Game adapts a running placement engine to the ebiten.Game interface. It
// owns the consumer side of the commit queue.
type Game struct {
	runner  *engine.Runner
	eng     engine.Engine
	painter *render.CanvasPainter
	hud     *ui.HUD
	overlay *ui.Overlay
	meter   *core.Throughput
	log     logger.Logger

	observers        core.ResizeObservers
	layoutW, layoutH int

	scale    int
	drained  int
	finished bool
}

// New constructs a Game for the runner's engine and paints the seed.
func New(r *engine.Runner, params core.ParameterSnapshot, scale int, showHUD bool, log logger.Logger) *Game {
	if scale < 1 {
		scale = 1
	}
	eng := r.Engine()
	pix := render.NewPixels(eng.Size(), color.Black)
	seed := eng.Seed()
	pix.Put(seed.Pos, seed.Color)

	g := &Game{
		runner:  r,
		eng:     eng,
		painter: render.NewCanvasPainter(pix),
		hud:     ui.NewHUD(params, hudWidth, showHUD),
		overlay: ui.NewOverlay(),
		meter:   core.NewThroughput(time.Second),
		log:     log,
		scale:   scale,
		drained: 1,
	}
	g.observers.Register(g.hud.Resize)
	g.observers.Register(func(w, h int) { g.overlay.Resize(w-g.hud.Width(), h) })
	return g
}

// Update drains the commit queue into the canvas image and handles input.
func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		err := g.runner.Stop()
		g.drain()
		g.log.Info("viewer closed", zap.Int("placed", g.drained), zap.Error(err))
		if err != nil {
			return err
		}
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		g.hud.Toggle()
	}

	g.drain()
	if !g.finished {
		select {
		case <-g.runner.Done():
			g.finished = true
			// the engine may have committed after the last swap
			g.drain()
			if err := g.runner.Wait(); err != nil {
				return err
			}
			g.log.Info("placement finished", zap.Int("placed", g.drained))
		default:
		}
	}

	g.meter.Observe(g.drained)
	st := g.eng.Stats()
	status := ui.Status{
		Engine:    g.eng.Name(),
		Placed:    g.drained,
		Total:     g.eng.Size().Cells(),
		Rate:      g.meter.Rate(),
		Frontier:  st.Frontier,
		Conflicts: st.Conflicts,
		Batches:   st.Batches,
		Elapsed:   g.meter.Elapsed(),
		Finished:  g.finished,
	}
	g.hud.Update(status)
	g.overlay.Update(status)
	return nil
}

func (g *Game) drain() {
	g.drained += g.painter.Pixels().Apply(g.eng.Queue().Swap())
}

// Draw renders the canvas, the progress bar and the HUD.
func (g *Game) Draw(screen *ebiten.Image) {
	g.painter.Blit(screen, g.scale)
	g.overlay.Draw(screen)
	g.hud.Draw(screen, g.eng.Size().W*g.scale)
}

// Layout returns the logical screen size and notifies observers when it
// changes.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := g.eng.Size()
	w, h := s.W*g.scale+g.hud.Width(), s.H*g.scale
	if w != g.layoutW || h != g.layoutH {
		g.layoutW, g.layoutH = w, h
		g.observers.Notify(w, h)
	}
	return w, h
}
