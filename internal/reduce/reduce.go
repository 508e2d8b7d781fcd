// Package reduce selects the best candidate record, either with a linear scan
// or a pairwise tournament.
package reduce

import (
	"math/bits"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// Record is one scored candidate. Index identifies the candidate, usually its
// slot in a frontier snapshot or a packed cell index.
type Record struct {
	Score uint32
	Index uint32
}

// Less orders records by score, breaking ties by the lower index.
func Less(a, b Record) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index < b.Index
}

// Pick returns the better of a and b.
func Pick(a, b Record) Record {
	if Less(b, a) {
		return b
	}
	return a
}

// Rounds returns the number of pairwise rounds needed to reduce n records to
// one, ceil(log2 n).
func Rounds(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// LevelLen returns the number of records in the level above one of n records.
func LevelLen(n int) int { return (n + 1) / 2 }

// Linear scans records once and returns the minimum. ok is false for an empty
// input.
func Linear(records []Record) (best Record, ok bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	best = records[0]
	for _, r := range records[1:] {
		best = Pick(best, r)
	}
	return best, true
}

// Round reduces src[lo:hi) pairs into dst, dst[j] = Pick(src[2j], src[2j+1]).
// An unpaired trailing record is carried up unchanged.
func Round(dst, src []Record, lo, hi int) {
	for j := lo; j < hi; j++ {
		a := 2 * j
		if a+1 < len(src) {
			dst[j] = Pick(src[a], src[a+1])
		} else {
			dst[j] = src[a]
		}
	}
}

// Result describes a completed tournament.
type Result struct {
	Winner Record
	Rounds int
	// Levels counts every level including the input level.
	Levels int
}

// Tournament reduces records level by level. Levels wider than Chunk are
// split across up to Workers goroutines. The zero value is usable.
type Tournament struct {
	Workers int
	Chunk   int
}

const defaultChunk = 4096

// Scratch holds the level buffers of a tournament between calls.
type Scratch struct {
	ping, pong []Record
}

func (s *Scratch) levels(n int) (ping, pong []Record) {
	if cap(s.ping) < LevelLen(n) {
		s.ping = make([]Record, LevelLen(n))
	}
	if cap(s.pong) < LevelLen(LevelLen(n)) {
		s.pong = make([]Record, LevelLen(LevelLen(n)))
	}
	return s.ping[:cap(s.ping)], s.pong[:cap(s.pong)]
}

// Reduce runs the tournament. The input slice is not modified. ok is false
// for an empty input.
func (t Tournament) Reduce(records []Record) (Result, bool) {
	return t.ReduceInto(records, nil)
}

// ReduceInto is Reduce with level buffers taken from s, which may be nil.
func (t Tournament) ReduceInto(records []Record, s *Scratch) (Result, bool) {
	n := len(records)
	if n == 0 {
		return Result{}, false
	}
	res := Result{Rounds: Rounds(n), Levels: Rounds(n) + 1}
	if n == 1 {
		res.Winner = records[0]
		return res, true
	}

	workers := t.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := t.Chunk
	if chunk <= 0 {
		chunk = defaultChunk
	}

	if s == nil {
		s = &Scratch{}
	}
	src := records
	ping, pong := s.levels(n)
	for len(src) > 1 {
		out := LevelLen(len(src))
		dst := ping[:out]
		if out <= chunk || workers == 1 {
			Round(dst, src, 0, out)
		} else {
			p := pool.New().WithMaxGoroutines(workers)
			level := src
			for lo := 0; lo < out; lo += chunk {
				lo, hi := lo, min(lo+chunk, out)
				p.Go(func() { Round(dst, level, lo, hi) })
			}
			p.Wait()
		}
		src = dst
		ping, pong = pong, ping
	}
	res.Winner = src[0]
	return res, true
}
