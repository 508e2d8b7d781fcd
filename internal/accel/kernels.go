package accel

import (
	"coral/internal/core"
	"coral/internal/reduce"
	"coral/internal/score"
)

// Workgroup is one invocation block of a dispatch. Data holds the words of
// each binding in binding order.
type Workgroup struct {
	X, Y int
	Push []uint32
	Data [][]uint32
}

// Kernel is a compute program. Execute runs every local invocation of one
// workgroup and may be called concurrently for different workgroups.
type Kernel interface {
	Name() string
	Execute(g Workgroup)
}

// Groups returns the number of workgroups of size needed to cover n items.
func Groups(n, size int) int {
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// RecordWords is the number of words a reduce.Record occupies in a buffer.
const RecordWords = 2

// PutRecord stores r at record slot i of words.
func PutRecord(words []uint32, i int, r reduce.Record) {
	words[i*RecordWords] = r.Score
	words[i*RecordWords+1] = r.Index
}

// GetRecord loads record slot i of words.
func GetRecord(words []uint32, i int) reduce.Record {
	return reduce.Record{Score: words[i*RecordWords], Index: words[i*RecordWords+1]}
}

// UpdateKernel applies committed pixels to the canvas mirror.
//
// Bindings: 0 updates (cell index, packed color pairs), 1 mirror image.
// Push: 0 pair count.
type UpdateKernel struct{ Size int }

func (UpdateKernel) Name() string { return "update" }

func (k UpdateKernel) Execute(g Workgroup) {
	count := int(g.Push[0])
	updates, mirror := g.Data[0], g.Data[1]
	base := g.X * k.Size
	for l := 0; l < k.Size; l++ {
		i := base + l
		if i >= count {
			return
		}
		mirror[updates[2*i]] = updates[2*i+1]
	}
}

// ScoreKernel scores candidates against the colors of a batch and writes the
// first tournament level. Each workgroup keeps only its best record, so a
// color's row holds Partials(n) records, each indexing into the candidates.
// Workgroups span candidates along X and colors along Y.
//
// Bindings: 0 mirror, 1 candidate cell indices, 2 packed colors, 3 records.
// Push: 0 candidate count, 1 width, 2 height.
type ScoreKernel struct {
	Size        int
	Aggregation score.Aggregation
}

func (ScoreKernel) Name() string { return "score" }

// Partials returns the width of the level written for n candidates.
func (k ScoreKernel) Partials(n int) int { return Groups(n, k.Size) }

func (k ScoreKernel) Execute(g Workgroup) {
	n := int(g.Push[0])
	grid := score.Words{Dims: core.Size{W: int(g.Push[1]), H: int(g.Push[2])}, Data: g.Data[0]}
	cands, colors, out := g.Data[1], g.Data[2], g.Data[3]
	c := core.UnpackColor(colors[g.Y])
	base := g.X * k.Size
	var best reduce.Record
	for l := 0; l < k.Size; l++ {
		j := base + l
		if j >= n {
			break
		}
		p := grid.Dims.PositionOf(int(cands[j]))
		r := reduce.Record{Score: score.Score(grid, p, c, k.Aggregation), Index: uint32(j)}
		if l == 0 {
			best = r
		} else {
			best = reduce.Pick(best, r)
		}
	}
	PutRecord(out, g.Y*k.Partials(n)+g.X, best)
}

// ReduceKernel runs one tournament round for every color of a batch.
//
// Bindings: 0 source level, 1 destination level.
// Push: 0 source level width.
type ReduceKernel struct{ Size int }

func (ReduceKernel) Name() string { return "reduce" }

func (k ReduceKernel) Execute(g Workgroup) {
	nIn := int(g.Push[0])
	nOut := reduce.LevelLen(nIn)
	src, dst := g.Data[0], g.Data[1]
	in := g.Y * nIn
	out := g.Y * nOut
	base := g.X * k.Size
	for l := 0; l < k.Size; l++ {
		j := base + l
		if j >= nOut {
			return
		}
		a := 2 * j
		r := GetRecord(src, in+a)
		if a+1 < nIn {
			r = reduce.Pick(r, GetRecord(src, in+a+1))
		}
		PutRecord(dst, out+j, r)
	}
}
