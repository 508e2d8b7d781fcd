package core

import "time"

// Throughput turns a monotonically increasing placement total into a
// placements-per-second rate sampled over a sliding window.
type Throughput struct {
	window time.Duration
	now    func() time.Time

	start     time.Time
	last      time.Time
	lastTotal int
	rate      float64
}

// NewThroughput constructs a meter that refreshes its rate once per window.
func NewThroughput(window time.Duration) *Throughput {
	if window <= 0 {
		window = time.Second
	}
	return &Throughput{window: window, now: time.Now}
}

// Observe records the current total. It is meant to be called every frame.
func (t *Throughput) Observe(total int) {
	now := t.now()
	if t.start.IsZero() {
		t.start = now
		t.last = now
		t.lastTotal = total
		return
	}
	elapsed := now.Sub(t.last)
	if elapsed < t.window {
		return
	}
	t.rate = float64(total-t.lastTotal) / elapsed.Seconds()
	t.last = now
	t.lastTotal = total
}

// Rate returns the most recent placements-per-second sample.
func (t *Throughput) Rate() float64 { return t.rate }

// Elapsed returns the time since the first observation.
func (t *Throughput) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return t.now().Sub(t.start)
}

// AverageRate returns total divided by the elapsed time in seconds, treating
// anything shorter than a millisecond as one millisecond.
func AverageRate(total int, elapsed time.Duration) float64 {
	if elapsed < time.Millisecond {
		elapsed = time.Millisecond
	}
	return float64(total) / elapsed.Seconds()
}
