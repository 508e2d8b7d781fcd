package engine

import (
	"context"

	"coral/internal/reduce"
	"coral/internal/score"
)

// ReferenceEngine places one color at a time, scoring every frontier cell on
// the CPU and committing the tournament arg-min immediately. It never
// conflicts.
type ReferenceEngine struct {
	*placer
	records    []reduce.Record
	tournament reduce.Tournament
	scratch    reduce.Scratch
}

// NewReference builds the CPU reference engine and places the seed.
func NewReference(opts Options) (*ReferenceEngine, error) {
	opts = opts.withDefaults()
	p, err := newPlacer(Reference, opts, false)
	if err != nil {
		return nil, err
	}
	return &ReferenceEngine{placer: p}, nil
}

func (e *ReferenceEngine) Run(ctx context.Context) error {
	if !e.begin() {
		return ErrAlreadyRun
	}
	stopped := false
	for !e.done() {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		c := e.next()
		members := e.frontier.Members()
		e.records = e.records[:0]
		for i, pos := range members {
			e.records = append(e.records, reduce.Record{
				Score: score.Score(e.canvas, pos, c, e.agg),
				Index: uint32(i),
			})
		}
		res, _ := e.tournament.ReduceInto(e.records, &e.scratch)
		e.batch(1)
		e.commit(members[res.Winner.Index], c)
		e.frontierLen.Store(int64(e.frontier.Len()))
	}
	e.finish(stopped)
	return nil
}
