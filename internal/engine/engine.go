// Package engine grows a canvas by greedily placing each color from a source
// at the frontier cell whose placed neighbours match it best.
package engine

import (
	"context"
	"errors"
	"fmt"

	"coral/internal/accel"
	"coral/internal/colorsrc"
	"coral/internal/commitq"
	"coral/internal/core"
	"coral/internal/logger"
	"coral/internal/score"
)

// Kind selects a placement engine.
type Kind int

const (
	// Accelerated batches colors and scores them on an accelerator device.
	Accelerated Kind = iota
	// Reference places one color at a time with a linear scan on the CPU.
	Reference
)

func (k Kind) String() string {
	switch k {
	case Accelerated:
		return "accelerated"
	case Reference:
		return "reference"
	default:
		return fmt.Sprintf("engine(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "accelerated":
		return Accelerated, nil
	case "reference":
		return Reference, nil
	default:
		return 0, fmt.Errorf("engine: unknown engine %q (want accelerated or reference)", name)
	}
}

var (
	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("engine: already run")
	// ErrNoDevice is returned when an accelerated engine is built without a
	// device.
	ErrNoDevice = errors.New("engine: accelerated engine requires a device")
	// ErrEmptySource is returned when the source cannot provide a seed color.
	ErrEmptySource = errors.New("engine: color source is empty")
)

// Engine is a placement engine. Run owns the canvas; every other method is
// safe to call concurrently with it.
type Engine interface {
	Name() string
	Size() core.Size
	// Seed is the color placed at the canvas center before the loop. It is
	// not delivered through the commit queue.
	Seed() commitq.Item
	// Queue carries every placement after the seed.
	Queue() *commitq.Queue
	// Run places colors until the frontier or the source is exhausted, or ctx
	// is done. Stopping is not an error.
	Run(ctx context.Context) error
	Stats() Stats
	// Canvas may only be read after Run returns.
	Canvas() *core.Canvas
}

// Stats counts engine progress. Retrieved - Resubmitted == Committed holds
// whenever no batch is in flight.
type Stats struct {
	Retrieved   int64
	Committed   int64
	Conflicts   int64
	Resubmitted int64
	Batches     int64
	Frontier    int64
}

// Options configure an engine.
type Options struct {
	Kind   Kind
	Width  int
	Height int
	Source colorsrc.Source

	Aggregation      score.Aggregation
	MaxBatchAbsolute int
	MaxBatchRelative int
	Slots            int
	WorkGroupSize    int

	// Device is required by Accelerated and unused by Reference.
	Device *accel.Device

	// Queue defaults to a fresh commit queue.
	Queue  *commitq.Queue
	Logger logger.Logger
}

const (
	DefaultMaxBatchAbsolute = 1024
	DefaultMaxBatchRelative = 1024
	DefaultSlots            = 2
	DefaultWorkGroupSize    = 64
)

func (o Options) withDefaults() Options {
	if o.MaxBatchAbsolute <= 0 {
		o.MaxBatchAbsolute = DefaultMaxBatchAbsolute
	}
	if o.MaxBatchRelative <= 0 {
		o.MaxBatchRelative = DefaultMaxBatchRelative
	}
	if o.Slots <= 0 {
		o.Slots = DefaultSlots
	}
	if o.WorkGroupSize <= 0 {
		o.WorkGroupSize = DefaultWorkGroupSize
	}
	if o.Queue == nil {
		o.Queue = commitq.New(1024)
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoopLogger()
	}
	return o
}

// New builds the engine selected by opts.Kind and places the seed.
func New(opts Options) (Engine, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("engine: invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("engine: nil color source")
	}
	switch opts.Kind {
	case Accelerated:
		return NewAccelerated(opts)
	case Reference:
		return NewReference(opts)
	default:
		return nil, fmt.Errorf("engine: unsupported kind %v", opts.Kind)
	}
}

// BatchSize returns how many colors to score against a frontier of
// frontierLen candidates: frontierLen/relative capped at absolute, at least 1.
func BatchSize(frontierLen, absolute, relative int) int {
	if relative <= 0 {
		relative = 1
	}
	return max(1, min(absolute, frontierLen/relative))
}
