package commitq

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"coral/internal/core"
)

func TestSwapReturnsAppendOrder(t *testing.T) {
	q := New(4)
	var want []Item
	for i := 0; i < 10; i++ {
		it := Item{Pos: core.Position{X: i, Y: 2 * i}, Color: core.Color{R: uint8(i), A: core.Placed}}
		q.Enqueue(it.Pos, it.Color)
		want = append(want, it)
	}

	got := q.Swap()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("swap mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, q.Swap())
	require.Equal(t, uint64(10), q.TotalCount())

	q.Enqueue(core.Position{X: 1}, core.Color{})
	require.Len(t, q.Swap(), 1)
	require.Equal(t, uint64(11), q.TotalCount())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	const n = 20000
	q := New(0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue(core.Position{X: i}, core.Color{})
		}
	}()

	next := 0
	for next < n {
		for _, it := range q.Swap() {
			require.Equal(t, next, it.Pos.X, "items must arrive in order exactly once")
			next++
		}
	}
	wg.Wait()
	require.Empty(t, q.Swap())
	require.Equal(t, uint64(n), q.TotalCount())
}
