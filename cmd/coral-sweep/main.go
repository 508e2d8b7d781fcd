package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"coral/internal/accel"
	"coral/internal/config"
	"coral/internal/engine"
)

type paramSet struct {
	absolute int
	relative int
	slots    int
	agg      string
}

func (p paramSet) String() string {
	return fmt.Sprintf("abs=%d rel=%d slots=%d agg=%s", p.absolute, p.relative, p.slots, p.agg)
}

type runResult struct {
	conflictRate float64
	rate         float64
	batches      int64
}

type scenarioResult struct {
	params       paramSet
	conflictMean float64
	conflictStd  float64
	rateMean     float64
	rateStd      float64
	batchesMean  float64
}

func main() {
	size := flag.Int("size", 128, "canvas side length")
	depth := flag.Int("bit-depth", 6, "bits per channel")
	seeds := flag.Int("seeds", 3, "runs per parameter set, each with its own shuffle seed")
	workers := flag.Int("workers", runtime.NumCPU()/2, "scenarios run concurrently")
	top := flag.Int("top", 5, "results to print")
	flag.Parse()

	base := config.DefaultConfig()
	base.Width, base.Height, base.BitDepth = *size, *size, *depth
	base.Log.Level = "none"
	base.Device.MemoryMB = 512
	if err := base.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var sets []paramSet
	for _, abs := range []int{64, 256, 1024} {
		for _, rel := range []int{4, 16, 64, 256} {
			for _, slots := range []int{1, 2, 4} {
				for _, agg := range []string{"mean", "min", "average"} {
					sets = append(sets, paramSet{absolute: abs, relative: rel, slots: slots, agg: agg})
				}
			}
		}
	}

	fmt.Printf("Sweeping %d parameter sets x %d seeds (%d workers, %dx%d canvas)\n",
		len(sets), *seeds, max(1, *workers), *size, *size)

	start := time.Now()
	runs := make([][]runResult, len(sets))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, *workers))
	for i, params := range sets {
		for s := 0; s < *seeds; s++ {
			g.Go(func() error {
				res, err := runScenario(ctx, base, params, base.Seed+int64(s))
				if err != nil {
					return fmt.Errorf("%s seed %d: %w", params, s, err)
				}
				mu.Lock()
				runs[i] = append(runs[i], res)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	all := make([]scenarioResult, len(sets))
	for i, params := range sets {
		all[i] = summarize(params, runs[i])
	}
	sort.Slice(all, func(i, j int) bool { return all[i].rateMean > all[j].rateMean })
	elapsed := time.Since(start)

	fmt.Printf("\nTop %d by throughput (elapsed %s):\n", *top, elapsed.Round(time.Millisecond))
	for i := 0; i < len(all) && i < *top; i++ {
		res := all[i]
		fmt.Printf("%2d) rate=%.0f±%.0f px/s conflicts=%.3f±%.3f/px batches=%.0f %s\n",
			i+1, res.rateMean, res.rateStd, res.conflictMean, res.conflictStd, res.batchesMean, res.params)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].conflictMean < all[j].conflictMean })
	best := all[0]
	fmt.Printf("\nFewest conflicts: %.3f±%.3f/px rate=%.0f px/s %s\n",
		best.conflictMean, best.conflictStd, best.rateMean, best.params)
}

func runScenario(ctx context.Context, base config.Config, params paramSet, seed int64) (runResult, error) {
	cfg := base
	cfg.Seed = seed
	cfg.Batch.Absolute = params.absolute
	cfg.Batch.Relative = params.relative
	cfg.Device.Slots = params.slots
	cfg.Aggregation = params.agg

	opts, err := cfg.EngineOptions()
	if err != nil {
		return runResult{}, err
	}
	dev, err := accel.NewDevice(cfg.DeviceOptions())
	if err != nil {
		return runResult{}, err
	}
	defer dev.Close()
	opts.Device = dev

	eng, err := engine.New(opts)
	if err != nil {
		return runResult{}, err
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		// nobody renders during a sweep
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				eng.Queue().Swap()
			}
		}
	}()

	start := time.Now()
	if err := eng.Run(ctx); err != nil {
		return runResult{}, err
	}
	elapsed := time.Since(start)

	st := eng.Stats()
	return runResult{
		conflictRate: float64(st.Conflicts) / float64(max(1, st.Committed)),
		rate:         float64(st.Committed) / max(elapsed.Seconds(), 1e-3),
		batches:      st.Batches,
	}, nil
}

func summarize(params paramSet, runs []runResult) scenarioResult {
	conflicts := make([]float64, len(runs))
	rates := make([]float64, len(runs))
	batches := make([]float64, len(runs))
	for i, r := range runs {
		conflicts[i] = r.conflictRate
		rates[i] = r.rate
		batches[i] = float64(r.batches)
	}
	res := scenarioResult{params: params}
	res.conflictMean, res.conflictStd = stat.MeanStdDev(conflicts, nil)
	res.rateMean, res.rateStd = stat.MeanStdDev(rates, nil)
	res.batchesMean = stat.Mean(batches, nil)
	return res
}
