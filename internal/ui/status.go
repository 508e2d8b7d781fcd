package ui

import (
	"fmt"
	"strconv"
	"time"

	"coral/internal/core"
)

// Status is the live part of the HUD, refreshed every frame.
type Status struct {
	Engine    string
	Placed    int
	Total     int
	Rate      float64
	Frontier  int64
	Conflicts int64
	Batches   int64
	Elapsed   time.Duration
	Finished  bool
}

// Progress returns the placed fraction in [0, 1].
func (s Status) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Placed) / float64(s.Total)
	if p > 1 {
		return 1
	}
	return p
}

// Lines formats the status for the HUD panel.
func (s Status) Lines() []string {
	state := "running"
	if s.Finished {
		state = "finished"
	}
	conflictRate := 0.0
	if s.Placed > 0 {
		conflictRate = float64(s.Conflicts) / float64(s.Placed)
	}
	return []string{
		fmt.Sprintf("%s (%s)", s.Engine, state),
		fmt.Sprintf("Placed  %d / %d", s.Placed, s.Total),
		fmt.Sprintf("        %.1f%%", 100*s.Progress()),
		fmt.Sprintf("Rate    %s px/s", FormatRate(s.Rate)),
		fmt.Sprintf("Edge    %d", s.Frontier),
		fmt.Sprintf("Clash   %d (%.2f/px)", s.Conflicts, conflictRate),
		fmt.Sprintf("Batches %d", s.Batches),
		fmt.Sprintf("Time    %s", s.Elapsed.Truncate(100*time.Millisecond)),
	}
}

// FormatRate renders a rate with a k or M suffix.
func FormatRate(r float64) string {
	switch {
	case r >= 1e6:
		return strconv.FormatFloat(r/1e6, 'f', 2, 64) + "M"
	case r >= 1e3:
		return strconv.FormatFloat(r/1e3, 'f', 1, 64) + "k"
	default:
		return strconv.FormatFloat(r, 'f', 0, 64)
	}
}

// ParameterLines flattens a parameter snapshot into group headers followed by
// indented "Label: value" rows.
func ParameterLines(snap core.ParameterSnapshot) []string {
	var lines []string
	for _, g := range snap.Groups {
		if len(g.Params) == 0 {
			continue
		}
		lines = append(lines, g.Name)
		for _, p := range g.Params {
			lines = append(lines, "  "+p.Label+": "+p.Value)
		}
	}
	return lines
}
