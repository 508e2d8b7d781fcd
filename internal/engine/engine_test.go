package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"coral/internal/accel"
	"coral/internal/colorsrc"
	"coral/internal/commitq"
	"coral/internal/core"
	"coral/internal/reduce"
	"coral/internal/score"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDevice(t *testing.T) *accel.Device {
	t.Helper()
	d, err := accel.NewDevice(accel.Options{
		MemoryTypes: accel.DefaultMemoryTypes(64 << 20),
		PageWords:   1 << 16,
		Workers:     4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return d
}

// stopAfter reports cancellation once Err has been consulted n times, giving
// a deterministic pause point.
type stopAfter struct {
	context.Context
	left atomic.Int64
}

func newStopAfter(n int64) *stopAfter {
	c := &stopAfter{Context: context.Background()}
	c.left.Store(n)
	return c
}

func (c *stopAfter) Err() error {
	if c.left.Add(-1) < 0 {
		return context.Canceled
	}
	return nil
}

func sixteenColors(t *testing.T) []core.Color {
	t.Helper()
	colors, err := colorsrc.Cube(2)
	require.NoError(t, err)
	return colors[:16]
}

func drainQueue(q *commitq.Queue) []commitq.Item {
	return append([]commitq.Item(nil), q.Swap()...)
}

func requireFrontierInvariant(t *testing.T, p *placer) {
	t.Helper()
	size := p.canvas.Size()
	for i := 0; i < size.Cells(); i++ {
		pos := size.PositionOf(i)
		if p.canvas.Placed(pos) {
			require.False(t, p.frontier.Contains(pos), "placed cell %v in frontier", pos)
			continue
		}
		touching := false
		p.canvas.PlacedNeighbors(pos, func(core.Color) { touching = true })
		require.Equal(t, touching, p.frontier.Contains(pos), "frontier membership of %v", pos)
	}
}

func TestBatchSize(t *testing.T) {
	for _, tc := range []struct {
		frontier, abs, rel, want int
	}{
		{0, 1024, 1024, 1},
		{1023, 1024, 1024, 1},
		{4096, 1024, 1024, 4},
		{10_000_000, 1024, 1024, 1024},
		{10, 4, 1, 4},
		{3, 4, 1, 3},
		{5, 8, 0, 5},
	} {
		require.Equal(t, tc.want, BatchSize(tc.frontier, tc.abs, tc.rel), "%+v", tc)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("reference")
	require.NoError(t, err)
	require.Equal(t, Reference, k)
	require.Equal(t, "accelerated", Accelerated.String())
	_, err = ParseKind("gpu")
	require.Error(t, err)
}

func TestEndToEndSmallCanvas(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Options
	}{
		{"reference", Options{Kind: Reference}},
		{"accelerated", Options{Kind: Accelerated}},
		{"accelerated batched", Options{Kind: Accelerated, MaxBatchAbsolute: 4, MaxBatchRelative: 1, Slots: 3, WorkGroupSize: 2}},
		{"accelerated min", Options{Kind: Accelerated, Aggregation: score.Min, Slots: 1}},
		{"accelerated average", Options{Kind: Accelerated, Aggregation: score.Average, Slots: 2, WorkGroupSize: 3}},
		{"reference average", Options{Kind: Reference, Aggregation: score.Average}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			colors := sixteenColors(t)
			opts := tc.opts
			opts.Width, opts.Height = 4, 4
			opts.Source = colorsrc.NewSlice(colors)
			if opts.Kind == Accelerated {
				opts.Device = newDevice(t)
			}
			e, err := New(opts)
			require.NoError(t, err)
			require.Equal(t, core.Position{X: 2, Y: 2}, e.Seed().Pos)
			require.Equal(t, colors[0], e.Seed().Color)

			require.NoError(t, e.Run(context.Background()))

			canvas := e.Canvas()
			for i, c := range canvas.Cells() {
				require.Equal(t, core.Placed, c.A, "cell %d", i)
			}
			st := e.Stats()
			require.Zero(t, st.Frontier)
			require.Equal(t, int64(16), st.Committed)
			require.Equal(t, st.Committed, st.Retrieved-st.Resubmitted)

			items := drainQueue(e.Queue())
			require.Len(t, items, 15)
			require.Equal(t, uint64(15), e.Queue().TotalCount())
			seen := map[core.Position]bool{e.Seed().Pos: true}
			used := map[core.Color]bool{e.Seed().Color: true}
			for _, it := range items {
				require.False(t, seen[it.Pos], "position %v committed twice", it.Pos)
				seen[it.Pos] = true
				require.False(t, used[it.Color], "color %v placed twice", it.Color)
				used[it.Color] = true
				require.Equal(t, canvas.At(it.Pos), it.Color)
			}
			require.Len(t, used, 16)
		})
	}
}

// TestSingleSlotMatchesReference checks that with one slot and one color per
// batch the accelerated pipeline makes exactly the reference choices.
func TestSingleSlotMatchesReference(t *testing.T) {
	for _, agg := range []score.Aggregation{score.Mean, score.Min, score.Average} {
		build := func(kind Kind, dev *accel.Device) Engine {
			src, err := colorsrc.NewShuffle(2, 99)
			require.NoError(t, err)
			e, err := New(Options{
				Kind: kind, Width: 9, Height: 7, Source: src, Aggregation: agg,
				Slots: 1, MaxBatchAbsolute: 1, WorkGroupSize: 8, Device: dev,
			})
			require.NoError(t, err)
			require.NoError(t, e.Run(context.Background()))
			return e
		}
		ref := build(Reference, nil)
		acc := build(Accelerated, newDevice(t))
		require.Equal(t, ref.Canvas().Cells(), acc.Canvas().Cells(), "aggregation %v", agg)
		require.Zero(t, acc.Stats().Conflicts)
	}
}

func TestConflictResubmitsSecondColor(t *testing.T) {
	seed := core.Color{R: 100, G: 100, B: 100, A: core.Placed}
	first := core.Color{R: 110, G: 100, B: 100, A: core.Placed}
	second := core.Color{R: 100, G: 110, B: 100, A: core.Placed}
	third := core.Color{R: 1, G: 2, B: 3, A: core.Placed}
	src := colorsrc.NewSlice([]core.Color{seed, first, second, third})

	e, err := NewAccelerated(Options{Width: 2, Height: 1, Source: src, Device: newDevice(t)})
	require.NoError(t, err)
	require.Equal(t, core.Position{X: 1, Y: 0}, e.Seed().Pos)
	require.NoError(t, e.Run(context.Background()))

	items := drainQueue(e.Queue())
	require.Equal(t, []commitq.Item{{Pos: core.Position{X: 0, Y: 0}, Color: first}}, items)
	st := e.Stats()
	require.Equal(t, int64(1), st.Conflicts)
	require.Equal(t, int64(2), st.Batches)
	require.Equal(t, st.Committed, st.Retrieved-st.Resubmitted)

	require.True(t, src.HasNext())
	require.Equal(t, second, src.Next())
	require.Equal(t, third, src.Next())
}

func TestResolveKeepsBatchOrder(t *testing.T) {
	colors := []core.Color{{R: 9, A: core.Placed}, {R: 1, A: core.Placed}, {R: 2, A: core.Placed}, {R: 3, A: core.Placed}, {R: 4, A: core.Placed}}
	src := colorsrc.NewSlice(colors)
	e, err := NewReference(Options{Width: 3, Height: 3, Source: src})
	require.NoError(t, err)

	batch := []core.Color{e.next(), e.next(), e.next(), e.next()}
	cell := core.Position{X: 0, Y: 0}
	winners := []core.Position{cell, cell, {X: 2, Y: 2}, {X: 1, Y: 0}}
	ok := []bool{true, true, false, true}

	require.Equal(t, 2, e.resolve(batch, winners, ok))
	require.Equal(t, batch[0], e.canvas.At(cell))
	require.Equal(t, batch[3], e.canvas.At(core.Position{X: 1, Y: 0}))
	require.False(t, e.canvas.Placed(core.Position{X: 2, Y: 2}))
	requireFrontierInvariant(t, e.placer)

	require.Equal(t, batch[1], src.Next(), "first conflicting color is retried first")
	require.Equal(t, batch[2], src.Next())
	require.False(t, src.HasNext())
	require.Equal(t, int64(2), e.Stats().Conflicts)
}

// TestFrontierInvariantAfterEveryCommit steps the placer one placement at a
// time, mixing in same-cell conflicts, and checks the frontier after each.
func TestFrontierInvariantAfterEveryCommit(t *testing.T) {
	src, err := colorsrc.NewShuffle(2, 21)
	require.NoError(t, err)
	e, err := NewReference(Options{Width: 6, Height: 5, Source: src})
	require.NoError(t, err)
	requireFrontierInvariant(t, e.placer)

	var tour reduce.Tournament
	for step := 0; !e.done(); step++ {
		members := e.frontier.Members()
		c := e.next()
		records := make([]reduce.Record, len(members))
		for i, pos := range members {
			records[i] = reduce.Record{Score: score.Score(e.canvas, pos, c, e.agg), Index: uint32(i)}
		}
		res, ok := tour.Reduce(records)
		require.True(t, ok)
		target := members[res.Winner.Index]

		batch := []core.Color{c}
		winners := []core.Position{target}
		if step%3 == 0 {
			batch = append(batch, e.next())
			winners = append(winners, target)
		}
		require.Equal(t, 1, e.resolve(batch, winners, []bool{true, true}[:len(batch)]))
		requireFrontierInvariant(t, e.placer)
		require.Equal(t, c, e.canvas.At(target))
		require.Equal(t, step+2, e.canvas.Count())
		if len(batch) == 2 {
			require.Equal(t, batch[1], src.Next(), "conflicting color is delivered next")
			src.Resubmit(batch[1])
		}
	}
	require.Equal(t, 30, e.canvas.Count())
	require.True(t, e.frontier.Empty())
	st := e.Stats()
	require.Equal(t, st.Committed, st.Retrieved-st.Resubmitted)
}

// TestBatchConflictEndToEnd runs one slot with a batch of two colors that
// both pick the same cell. On a 3x1 canvas both free cells score alike, so
// the lower candidate index wins for each color.
func TestBatchConflictEndToEnd(t *testing.T) {
	seed := core.Color{R: 100, G: 100, B: 100, A: core.Placed}
	first := core.Color{R: 10, G: 200, B: 30, A: core.Placed}
	second := core.Color{R: 200, G: 10, B: 90, A: core.Placed}
	spare := core.Color{R: 1, G: 2, B: 3, A: core.Placed}
	src := colorsrc.NewSlice([]core.Color{seed, first, second, spare})

	e, err := NewAccelerated(Options{
		Width: 3, Height: 1, Source: src, Device: newDevice(t),
		MaxBatchAbsolute: 4, MaxBatchRelative: 1, Slots: 1, WorkGroupSize: 1,
	})
	require.NoError(t, err)
	require.Equal(t, core.Position{X: 1, Y: 0}, e.Seed().Pos)
	require.NoError(t, e.Run(context.Background()))

	items := drainQueue(e.Queue())
	require.Len(t, items, 2)
	require.Equal(t, first, items[0].Color)
	require.Equal(t, second, items[1].Color, "the conflicting color is placed by the next batch")
	require.NotEqual(t, items[0].Pos, items[1].Pos)

	st := e.Stats()
	require.Equal(t, int64(1), st.Conflicts)
	require.Equal(t, int64(1), st.Resubmitted)
	require.Equal(t, int64(2), st.Batches)
	require.Equal(t, int64(3), st.Committed)
	require.Equal(t, st.Committed, st.Retrieved-st.Resubmitted)
	require.Equal(t, 3, e.Canvas().Count())
	require.Equal(t, spare, src.Next())
}

func TestConservationAtPause(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts Options
	}{
		{"reference", Options{Kind: Reference}},
		{"accelerated", Options{Kind: Accelerated, MaxBatchAbsolute: 8, MaxBatchRelative: 2, Slots: 2}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			src, err := colorsrc.NewShuffle(3, 7)
			require.NoError(t, err)
			opts := tc.opts
			opts.Width, opts.Height, opts.Source = 24, 24, src
			if opts.Kind == Accelerated {
				opts.Device = newDevice(t)
			}
			e, err := New(opts)
			require.NoError(t, err)

			require.NoError(t, e.Run(newStopAfter(40)))
			st := e.Stats()
			require.Less(t, st.Committed, int64(24*24))
			require.Equal(t, st.Committed, st.Retrieved-st.Resubmitted)
			require.Equal(t, colorsrc.Count(3), int(st.Committed)+src.Len())
			require.Equal(t, int(st.Committed), e.Canvas().Count())
			require.Equal(t, uint64(st.Committed-1), e.Queue().TotalCount())

			p := placerOf(e)
			requireFrontierInvariant(t, p)
			require.Equal(t, int64(p.frontier.Len()), st.Frontier)

			require.ErrorIs(t, e.Run(context.Background()), ErrAlreadyRun)
		})
	}
}

func placerOf(e Engine) *placer {
	switch v := e.(type) {
	case *ReferenceEngine:
		return v.placer
	case *AcceleratedEngine:
		return v.placer
	}
	return nil
}

func TestSourceExhaustsBeforeCanvas(t *testing.T) {
	src := colorsrc.NewSlice(sixteenColors(t)[:5])
	e, err := New(Options{Kind: Accelerated, Width: 8, Height: 8, Source: src, Device: newDevice(t)})
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, 5, e.Canvas().Count())
	require.False(t, src.HasNext())
	require.NotZero(t, e.Stats().Frontier)
}

func TestConstructionErrors(t *testing.T) {
	_, err := New(Options{Kind: Accelerated, Width: 4, Height: 4, Source: colorsrc.NewSlice(sixteenColors(t))})
	require.ErrorIs(t, err, ErrNoDevice)

	_, err = New(Options{Kind: Reference, Width: 4, Height: 4, Source: colorsrc.NewSlice(nil)})
	require.ErrorIs(t, err, ErrEmptySource)

	_, err = New(Options{Kind: Reference, Width: 0, Height: 4, Source: colorsrc.NewSlice(nil)})
	require.Error(t, err)

	small, err := accel.NewDevice(accel.Options{
		MemoryTypes: []accel.MemoryType{{Flags: accel.MemoryDeviceLocal, HeapBytes: 64}},
		PageWords:   16,
	})
	require.NoError(t, err)
	defer small.Close()
	_, err = New(Options{Kind: Accelerated, Width: 4, Height: 4, Source: colorsrc.NewSlice(sixteenColors(t)), Device: small})
	require.ErrorIs(t, err, accel.ErrOutOfMemory)
	require.Zero(t, small.Allocator().Stats().Live, "partial allocations must be released")
}

func TestMetrics(t *testing.T) {
	placements := placementsCounter.WithLabelValues("reference")
	batches := batchesCounter.WithLabelValues("reference")
	before, beforeBatches := testutil.ToFloat64(placements), testutil.ToFloat64(batches)

	e, err := New(Options{Kind: Reference, Width: 4, Height: 4, Source: colorsrc.NewSlice(sixteenColors(t))})
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	require.InDelta(t, 16, testutil.ToFloat64(placements)-before, 0)
	require.InDelta(t, 15, testutil.ToFloat64(batches)-beforeBatches, 0)
	require.InDelta(t, 0, testutil.ToFloat64(frontierGauge.WithLabelValues("reference")), 0)
}

func TestRunnerStopDrainsInFlight(t *testing.T) {
	src, err := colorsrc.NewShuffle(4, 3)
	require.NoError(t, err)
	e, err := New(Options{
		Kind: Accelerated, Width: 64, Height: 64, Source: src, Device: newDevice(t),
		MaxBatchAbsolute: 16, MaxBatchRelative: 4,
	})
	require.NoError(t, err)

	r := Start(context.Background(), e)
	require.Same(t, e, r.Engine())
	require.NoError(t, r.Stop())
	<-r.Done()

	st := e.Stats()
	require.Equal(t, st.Committed, st.Retrieved-st.Resubmitted)
	require.Equal(t, colorsrc.Count(4), int(st.Committed)+src.Len())
	require.Equal(t, uint64(st.Committed-1), e.Queue().TotalCount())
}

func TestRunnerWaitCompletes(t *testing.T) {
	e, err := New(Options{Kind: Reference, Width: 4, Height: 4, Source: colorsrc.NewSlice(sixteenColors(t))})
	require.NoError(t, err)
	r := Start(context.Background(), e)
	require.NoError(t, r.Wait())
	require.True(t, e.Canvas().Full())
	require.NoError(t, r.Stop())
}
