//go:build !ebiten

package ui

import "coral/internal/core"

// HUD is a no-op placeholder for headless builds.
type HUD struct{}

// NewHUD returns nil in the headless build.
func NewHUD(core.ParameterSnapshot, int, bool) *HUD { return nil }

// Toggle is a no-op in the headless build.
func (h *HUD) Toggle() {}

// Width is zero in the headless build.
func (h *HUD) Width() int { return 0 }

// Resize is a no-op in the headless build.
func (h *HUD) Resize(int, int) {}

// Update is a no-op in the headless build.
func (h *HUD) Update(Status) {}

// Draw is a no-op in the headless build.
func (h *HUD) Draw(any, int) {}
