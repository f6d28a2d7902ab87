// Package metrics exposes Prometheus counters for frame processing and status
// distribution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns a private Prometheus registry so several processors (and
// tests) can live in one process without duplicate registration panics.
//
// All record methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	framesTotal      *prometheus.CounterVec
	frameErrors      *prometheus.CounterVec
	framesDropped    *prometheus.CounterVec
	distributorCycle *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	deliveries       prometheus.Counter
	snapshotsPushed  *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector whose metric names are prefixed with namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.framesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames handled by a pipeline stage",
		},
		[]string{"stage", "stream"},
	)

	c.frameErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors_total",
			Help:      "Frames whose traversal was halted by a processing error",
		},
		[]string{"stage", "stream"},
	)

	c.framesDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped before the pipeline head",
		},
		[]string{"reason"},
	)

	c.distributorCycle = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributor_cycles_total",
			Help:      "Status distributor fetch cycles by outcome",
		},
		[]string{"result"},
	)

	c.cycleDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distributor_cycle_duration_seconds",
			Help:      "Time spent fetching and fanning out one snapshot",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	c.deliveries = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_deliveries_total",
			Help:      "Status items delivered to listeners",
		},
	)

	c.snapshotsPushed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Status snapshots written to the store by outcome",
		},
		[]string{"result"},
	)

	return c
}

// Registry returns the registry backing this collector, for /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordFrame counts a frame handled by a stage.
func (c *Collector) RecordFrame(stage, stream string) {
	if c == nil {
		return
	}
	c.framesTotal.WithLabelValues(stage, stream).Inc()
}

// RecordFrameError counts a frame halted by a processing error.
func (c *Collector) RecordFrameError(stage, stream string) {
	if c == nil {
		return
	}
	c.frameErrors.WithLabelValues(stage, stream).Inc()
}

// RecordDropped counts a frame dropped before processing.
func (c *Collector) RecordDropped(reason string) {
	if c == nil {
		return
	}
	c.framesDropped.WithLabelValues(reason).Inc()
}

// RecordCycle records one distributor cycle and the number of deliveries it made.
func (c *Collector) RecordCycle(err error, duration time.Duration, delivered int) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.distributorCycle.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(duration.Seconds())
	c.deliveries.Add(float64(delivered))

	c.logger.Debug("distributor cycle",
		zap.String("result", result),
		zap.Duration("duration", duration),
		zap.Int("delivered", delivered),
	)
}

// RecordSnapshotPublish counts a snapshot publication attempt.
func (c *Collector) RecordSnapshotPublish(err error) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.snapshotsPushed.WithLabelValues(result).Inc()
}
