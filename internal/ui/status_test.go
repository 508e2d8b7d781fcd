package ui

import (
	"testing"
	"time"

	"coral/internal/core"
)

func TestStatusProgressClamps(t *testing.T) {
	cases := []struct {
		placed, total int
		want          float64
	}{
		{0, 0, 0},
		{5, 10, 0.5},
		{12, 10, 1},
	}
	for _, tc := range cases {
		got := Status{Placed: tc.placed, Total: tc.total}.Progress()
		if got != tc.want {
			t.Fatalf("Progress(%d/%d) = %v, want %v", tc.placed, tc.total, got, tc.want)
		}
	}
}

func TestStatusLines(t *testing.T) {
	s := Status{
		Engine:    "accelerated",
		Placed:    50,
		Total:     200,
		Rate:      2_500_000,
		Conflicts: 25,
		Elapsed:   1234 * time.Millisecond,
		Finished:  true,
	}
	lines := s.Lines()
	if lines[0] != "accelerated (finished)" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[2] != "        25.0%" {
		t.Fatalf("progress = %q", lines[2])
	}
	if lines[3] != "Rate    2.50M px/s" {
		t.Fatalf("rate = %q", lines[3])
	}
	if lines[5] != "Clash   25 (0.50/px)" {
		t.Fatalf("conflicts = %q", lines[5])
	}
	if lines[7] != "Time    1.2s" {
		t.Fatalf("time = %q", lines[7])
	}
}

func TestFormatRate(t *testing.T) {
	for in, want := range map[float64]string{
		12:        "12",
		4_500:     "4.5k",
		1_000_000: "1.00M",
	} {
		if got := FormatRate(in); got != want {
			t.Fatalf("FormatRate(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParameterLinesSkipsEmptyGroups(t *testing.T) {
	snap := core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{Name: "Empty"},
		{Name: "Canvas", Params: []core.Parameter{{Key: "width", Label: "Width", Value: "64"}}},
	}}
	lines := ParameterLines(snap)
	if len(lines) != 2 || lines[0] != "Canvas" || lines[1] != "  Width: 64" {
		t.Fatalf("lines = %q", lines)
	}
}
