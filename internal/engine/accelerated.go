package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"coral/internal/accel"
	"coral/internal/core"
	"coral/internal/reduce"
	"coral/internal/score"
)

// AcceleratedEngine scores batches of colors against frontier snapshots on an
// accelerator, keeping up to Slots batches in flight. Results are resolved on
// the host in batch order; colors that lost their cell to an earlier commit
// are resubmitted.
type AcceleratedEngine struct {
	*placer
	dev    *accel.Device
	mirror *accel.Image
	slots  []*slot
	frame  int

	maxAbs int
	maxRel int
	wg     int

	update  accel.UpdateKernel
	scorer  accel.ScoreKernel
	reducer accel.ReduceKernel
}

// NewAccelerated builds the pipelined engine, allocates the canvas mirror and
// places the seed. Allocation failures abort construction.
func NewAccelerated(opts Options) (*AcceleratedEngine, error) {
	if opts.Device == nil {
		return nil, ErrNoDevice
	}
	opts = opts.withDefaults()
	p, err := newPlacer(Accelerated, opts, true)
	if err != nil {
		return nil, err
	}
	mirror, err := opts.Device.CreateImage("canvas mirror", p.canvas.Size())
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &AcceleratedEngine{
		placer:  p,
		dev:     opts.Device,
		mirror:  mirror,
		maxAbs:  opts.MaxBatchAbsolute,
		maxRel:  opts.MaxBatchRelative,
		wg:      opts.WorkGroupSize,
		update:  accel.UpdateKernel{Size: opts.WorkGroupSize},
		scorer:  accel.ScoreKernel{Size: opts.WorkGroupSize, Aggregation: opts.Aggregation},
		reducer: accel.ReduceKernel{Size: opts.WorkGroupSize},
	}
	for i := 0; i < opts.Slots; i++ {
		s := &slot{index: i, wg: e.wg, fence: e.dev.NewFence(true), cb: accel.NewCommandBuffer()}
		e.slots = append(e.slots, s)
		if err := s.reserve(e.dev, e.log, 1, 1, 1); err != nil {
			e.release()
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	return e, nil
}

// Mirror returns the accelerator copy of the canvas.
func (e *AcceleratedEngine) Mirror() *accel.Image { return e.mirror }

func (e *AcceleratedEngine) Run(ctx context.Context) error {
	if !e.begin(zap.Int("slots", len(e.slots)), zap.Int("work_group", e.wg)) {
		return ErrAlreadyRun
	}
	defer e.release()

	stopped := false
	for {
		s := e.slots[e.frame%len(e.slots)]
		s.fence.Wait()
		if s.inFlight {
			e.drain(s)
		}
		if ctx.Err() != nil {
			stopped = true
			break
		}
		if e.done() {
			if !e.anyInFlight() {
				break
			}
			// keep cycling so in-flight results land and any resubmitted
			// colors are retried
			e.frame++
			continue
		}
		if err := e.launch(s); err != nil {
			e.drainAll()
			e.finish(true)
			return err
		}
		e.frame++
	}
	e.drainAll()
	e.finish(stopped)
	return nil
}

func (e *AcceleratedEngine) anyInFlight() bool {
	for _, s := range e.slots {
		if s.inFlight {
			return true
		}
	}
	return false
}

// drainAll waits for and resolves every in-flight slot in pipeline order.
func (e *AcceleratedEngine) drainAll() {
	for i := range e.slots {
		s := e.slots[(e.frame+i)%len(e.slots)]
		if !s.inFlight {
			continue
		}
		s.fence.Wait()
		e.drain(s)
	}
}

// drain reads the winners of the slot's batch back and resolves them.
func (e *AcceleratedEngine) drain(s *slot) {
	s.inFlight = false
	words, err := s.readback.Map()
	b := len(s.colors)
	s.winners = s.winners[:0]
	s.ok = s.ok[:0]
	for k := 0; k < b; k++ {
		if err != nil {
			s.winners = append(s.winners, core.Position{})
			s.ok = append(s.ok, false)
			continue
		}
		r := accel.GetRecord(words, k)
		valid := r.Score != score.Excluded && int(r.Index) < len(s.cands)
		var pos core.Position
		if valid {
			pos = s.cands[r.Index]
		}
		s.winners = append(s.winners, pos)
		s.ok = append(s.ok, valid)
	}
	e.resolve(s.colors, s.winners, s.ok)
	s.colors = s.colors[:0]
}

// launch pulls the next batch, uploads it with the pending mirror updates and
// submits scoring plus the reduction rounds.
func (e *AcceleratedEngine) launch(s *slot) error {
	s.cands = e.frontier.Snapshot(s.cands)
	n := len(s.cands)
	b := BatchSize(n, e.maxAbs, e.maxRel)
	s.colors = s.colors[:0]
	for len(s.colors) < b && e.source.HasNext() {
		s.colors = append(s.colors, e.next())
	}
	b = len(s.colors)
	u := len(e.updates) / 2

	if err := s.reserve(e.dev, e.log, n, b, u); err != nil {
		e.giveBack(s)
		return fmt.Errorf("engine: %w", err)
	}

	size := e.canvas.Size()
	s.candWords = s.candWords[:0]
	for _, p := range s.cands {
		s.candWords = append(s.candWords, uint32(size.Index(p)))
	}
	s.colorWords = s.colorWords[:0]
	for _, c := range s.colors {
		s.colorWords = append(s.colorWords, c.Pack())
	}

	for _, t := range []struct {
		data []uint32
		dst  *accel.Buffer
	}{
		{e.updates, s.updates},
		{s.candWords, s.candidates},
		{s.colorWords, s.colorsBuf},
	} {
		if err := s.staging.Transfer(t.data, t.dst, 0); err != nil {
			s.staging.Flush(s.cb)
			e.giveBack(s)
			return fmt.Errorf("engine: %w", err)
		}
	}

	cb := s.cb
	cb.Reset()
	if dsts := s.staging.Flush(cb); len(dsts) > 0 {
		cb.Barrier(accel.StageTransfer, accel.StageCompute, dsts...)
	}
	if u > 0 {
		cb.Dispatch(e.update, accel.Groups(u, e.wg), 1, []uint32{uint32(u)},
			accel.Read(s.updates), accel.Write(e.mirror))
		cb.Barrier(accel.StageCompute, accel.StageCompute, e.mirror)
	}
	cb.Dispatch(e.scorer, e.scorer.Partials(n), b,
		[]uint32{uint32(n), uint32(size.W), uint32(size.H)},
		accel.Read(e.mirror), accel.Read(s.candidates), accel.Read(s.colorsBuf), accel.Write(s.ping))
	src, dst := s.ping, s.pong
	for width := e.scorer.Partials(n); width > 1; width = reduce.LevelLen(width) {
		cb.Barrier(accel.StageCompute, accel.StageCompute, src)
		cb.Dispatch(e.reducer, accel.Groups(reduce.LevelLen(width), e.wg), b, []uint32{uint32(width)},
			accel.Read(src), accel.Write(dst))
		src, dst = dst, src
	}
	cb.Barrier(accel.StageCompute, accel.StageTransfer, src)
	cb.Copy(src, 0, s.readback, 0, b*accel.RecordWords)
	cb.Barrier(accel.StageTransfer, accel.StageHost, s.readback)

	s.fence.Reset()
	if err := e.dev.Submit(cb, s.fence); err != nil {
		s.fence.Signal()
		e.giveBack(s)
		return fmt.Errorf("engine: submit slot %d: %w", s.index, err)
	}
	e.updates = e.updates[:0]
	s.inFlight = true
	e.batch(b)
	return nil
}

// giveBack returns an unsubmitted batch to the source, preserving its order.
func (e *AcceleratedEngine) giveBack(s *slot) {
	for i := len(s.colors) - 1; i >= 0; i-- {
		e.resubmit(s.colors[i])
	}
	s.colors = s.colors[:0]
}

func (e *AcceleratedEngine) release() {
	for _, s := range e.slots {
		s.release(e.dev)
	}
	if e.mirror != nil {
		e.dev.Destroy(e.mirror)
	}
}
