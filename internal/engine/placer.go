package engine

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"coral/internal/colorsrc"
	"coral/internal/commitq"
	"coral/internal/core"
	"coral/internal/frontier"
	"coral/internal/logger"
	"coral/internal/score"
)

// placer is the state shared by both engines: the canvas, its frontier and
// the commit path. Only the Run goroutine touches it, except for the atomic
// counters.
type placer struct {
	name     string
	canvas   *core.Canvas
	frontier *frontier.Set
	source   colorsrc.Source
	queue    *commitq.Queue
	agg      score.Aggregation
	log      logger.Logger
	metrics  metrics
	seed     commitq.Item

	// updates collects (cell index, packed color) pairs committed since the
	// last upload, when an accelerator mirror is kept.
	updates     []uint32
	trackMirror bool

	ran     atomic.Bool
	started time.Time

	retrieved   atomic.Int64
	committed   atomic.Int64
	conflicts   atomic.Int64
	resubmitted atomic.Int64
	batches     atomic.Int64
	frontierLen atomic.Int64

	// returned buffers conflicting colors of one batch
	returned []core.Color
}

func newPlacer(kind Kind, opts Options, trackMirror bool) (*placer, error) {
	if !opts.Source.HasNext() {
		return nil, ErrEmptySource
	}
	canvas := core.NewCanvas(opts.Width, opts.Height)
	p := &placer{
		name:        kind.String(),
		canvas:      canvas,
		frontier:    frontier.New(canvas.Size()),
		source:      opts.Source,
		queue:       opts.Queue,
		agg:         opts.Aggregation,
		metrics:     metricsFor(kind.String()),
		trackMirror: trackMirror,
	}
	p.log = opts.Logger.With(zap.String("engine", p.name))

	pos := canvas.Size().Center()
	c := p.next()
	p.place(pos, c)
	p.seed = commitq.Item{Pos: pos, Color: p.canvas.At(pos)}
	return p, nil
}

func (p *placer) Name() string          { return p.name }
func (p *placer) Size() core.Size       { return p.canvas.Size() }
func (p *placer) Seed() commitq.Item    { return p.seed }
func (p *placer) Queue() *commitq.Queue { return p.queue }
func (p *placer) Canvas() *core.Canvas  { return p.canvas }

func (p *placer) Stats() Stats {
	return Stats{
		Retrieved:   p.retrieved.Load(),
		Committed:   p.committed.Load(),
		Conflicts:   p.conflicts.Load(),
		Resubmitted: p.resubmitted.Load(),
		Batches:     p.batches.Load(),
		Frontier:    p.frontierLen.Load(),
	}
}

// begin marks the engine as running. It reports false on a second run.
func (p *placer) begin(fields ...zap.Field) bool {
	if !p.ran.CompareAndSwap(false, true) {
		return false
	}
	p.started = time.Now()
	size := p.canvas.Size()
	p.log.Info("engine started", append([]zap.Field{
		zap.Int("width", size.W),
		zap.Int("height", size.H),
		zap.Int("colors", p.source.Len()+1),
		zap.Stringer("aggregation", p.agg),
	}, fields...)...)
	return true
}

func (p *placer) finish(stopped bool) {
	p.frontierLen.Store(int64(p.frontier.Len()))
	p.metrics.frontier.Set(float64(p.frontier.Len()))
	elapsed := time.Since(p.started)
	st := p.Stats()
	p.log.Info("engine finished",
		zap.Bool("stopped", stopped),
		zap.Int64("committed", st.Committed),
		zap.Int64("conflicts", st.Conflicts),
		zap.Int64("batches", st.Batches),
		zap.Int("remaining", p.source.Len()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("placements_per_second", core.AverageRate(int(st.Committed), elapsed)),
	)
}

// done reports whether nothing more can be placed.
func (p *placer) done() bool { return p.frontier.Empty() || !p.source.HasNext() }

func (p *placer) next() core.Color {
	p.retrieved.Add(1)
	return p.source.Next()
}

// place writes c at pos without touching the commit queue.
func (p *placer) place(pos core.Position, c core.Color) {
	p.canvas.Set(pos, c)
	p.frontier.Remove(pos)
	p.frontier.AddNeighbors(p.canvas, pos)
	if p.trackMirror {
		p.updates = append(p.updates, uint32(p.canvas.Size().Index(pos)), p.canvas.At(pos).Pack())
	}
	p.committed.Add(1)
	p.metrics.placements.Inc()
}

// commit places c at pos if the cell is still free and reports whether it
// did.
func (p *placer) commit(pos core.Position, c core.Color) bool {
	if p.canvas.Placed(pos) {
		return false
	}
	p.place(pos, c)
	p.queue.Enqueue(pos, p.canvas.At(pos))
	return true
}

// resolve commits a scored batch in batch order. Colors whose cell was taken,
// by an earlier color of the batch or another in-flight batch, go back to the
// source so that the first of them is delivered next. ok[i] false marks a
// result to treat as a conflict outright.
func (p *placer) resolve(colors []core.Color, winners []core.Position, ok []bool) (committed int) {
	p.returned = p.returned[:0]
	for i, c := range colors {
		if ok[i] && p.commit(winners[i], c) {
			committed++
			continue
		}
		p.returned = append(p.returned, c)
	}
	for i := len(p.returned) - 1; i >= 0; i-- {
		p.resubmit(p.returned[i])
	}
	if n := len(p.returned); n > 0 {
		p.conflicts.Add(int64(n))
		p.metrics.conflicts.Add(float64(n))
	}
	p.frontierLen.Store(int64(p.frontier.Len()))
	return committed
}

func (p *placer) resubmit(c core.Color) {
	p.source.Resubmit(c)
	p.resubmitted.Add(1)
}

func (p *placer) batch(size int) {
	p.batches.Add(1)
	p.metrics.batches.Inc()
	p.metrics.batchSize.Observe(float64(size))
	p.metrics.frontier.Set(float64(p.frontier.Len()))
}
