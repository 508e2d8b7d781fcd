package core

import (
	"testing"
	"time"
)

func TestPackRoundTrip(t *testing.T) {
	c := Color{R: 1, G: 2, B: 3, A: Placed}
	if got := UnpackColor(c.Pack()); got != c {
		t.Fatalf("UnpackColor(Pack(%v)) = %v", c, got)
	}
	if c.Pack()>>24 != uint32(Placed) {
		t.Fatalf("alpha must occupy the high byte, got %#x", c.Pack())
	}
}

func TestDistanceSqIgnoresAlpha(t *testing.T) {
	a := Color{R: 10, G: 20, B: 30, A: 0}
	b := Color{R: 13, G: 16, B: 30, A: 255}
	if got := DistanceSq(a, b); got != 25 {
		t.Fatalf("DistanceSq = %d, want 25", got)
	}
	if got := DistanceSq(Color{}, Color{R: 255, G: 255, B: 255}); got != 3*255*255 {
		t.Fatalf("max distance = %d", got)
	}
}

func TestSizeIndexing(t *testing.T) {
	s := Size{W: 7, H: 5}
	for i := 0; i < s.Cells(); i++ {
		if got := s.Index(s.PositionOf(i)); got != i {
			t.Fatalf("Index(PositionOf(%d)) = %d", i, got)
		}
	}
	if s.Contains(Position{X: 7, Y: 0}) || s.Contains(Position{X: 0, Y: -1}) {
		t.Fatal("out of bounds positions reported as contained")
	}
	if c := (Size{W: 4, H: 4}).Center(); c != (Position{X: 2, Y: 2}) {
		t.Fatalf("center of 4x4 = %v", c)
	}
}

func TestCanvasSetForcesPlacedAlpha(t *testing.T) {
	c := NewCanvas(3, 3)
	p := Position{X: 1, Y: 1}
	c.Set(p, Color{R: 9, A: 17})
	if got := c.At(p); got.A != Placed || got.R != 9 {
		t.Fatalf("At = %v, want placed R=9", got)
	}
	if c.Count() != 1 {
		t.Fatalf("Count = %d, want 1", c.Count())
	}
	c.Set(p, Color{R: 4})
	if c.Count() != 1 {
		t.Fatalf("overwriting a placed cell must not bump Count, got %d", c.Count())
	}

	var seen int
	c.PlacedNeighbors(Position{X: 0, Y: 0}, func(Color) { seen++ })
	if seen != 1 {
		t.Fatalf("corner sees %d placed neighbours, want 1", seen)
	}
}

func TestResizeObserversOrder(t *testing.T) {
	var obs ResizeObservers
	var calls []int
	obs.Register(func(w, h int) { calls = append(calls, 1) })
	remove := obs.Register(func(w, h int) { calls = append(calls, 2) })
	obs.Register(func(w, h int) { calls = append(calls, 3) })

	obs.Notify(10, 10)
	remove()
	obs.Notify(10, 10)

	want := []int{1, 2, 3, 1, 3}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
	if obs.Len() != 2 {
		t.Fatalf("Len = %d, want 2", obs.Len())
	}
}

func TestThroughputWindow(t *testing.T) {
	now := time.Unix(0, 0)
	tp := NewThroughput(time.Second)
	tp.now = func() time.Time { return now }

	tp.Observe(0)
	now = now.Add(500 * time.Millisecond)
	tp.Observe(100)
	if tp.Rate() != 0 {
		t.Fatalf("rate refreshed before the window elapsed: %v", tp.Rate())
	}
	now = now.Add(1500 * time.Millisecond)
	tp.Observe(400)
	if tp.Rate() != 200 {
		t.Fatalf("Rate = %v, want 200", tp.Rate())
	}
	if tp.Elapsed() != 2*time.Second {
		t.Fatalf("Elapsed = %v", tp.Elapsed())
	}
}
