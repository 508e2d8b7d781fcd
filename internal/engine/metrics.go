package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coral"

var (
	placementsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "placements_total",
		Help:      "Colors committed to the canvas, including the seed.",
	}, []string{"engine"})

	conflictsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conflicts_total",
		Help:      "Batch results whose winning cell was already claimed.",
	}, []string{"engine"})

	batchesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_total",
		Help:      "Batches scored.",
	}, []string{"engine"})

	batchSizeHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_size",
		Help:      "Colors per scored batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	}, []string{"engine"})

	frontierGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "frontier_size",
		Help:      "Candidate cells currently in the frontier.",
	}, []string{"engine"})
)

type metrics struct {
	placements prometheus.Counter
	conflicts  prometheus.Counter
	batches    prometheus.Counter
	batchSize  prometheus.Observer
	frontier   prometheus.Gauge
}

func metricsFor(engine string) metrics {
	return metrics{
		placements: placementsCounter.WithLabelValues(engine),
		conflicts:  conflictsCounter.WithLabelValues(engine),
		batches:    batchesCounter.WithLabelValues(engine),
		batchSize:  batchSizeHistogram.WithLabelValues(engine),
		frontier:   frontierGauge.WithLabelValues(engine),
	}
}
