// Package metrics provides Prometheus metrics for capture batches and triggers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons used as the "reason" label of the skipped counter.
const (
	ReasonBlacklisted  = "blacklisted"
	ReasonUnresolvable = "unresolvable"
	ReasonUnavailable  = "unavailable"
	ReasonEncode       = "encode"
)

// Trigger outcomes used as the "outcome" label of the triggers counter.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDebounced = "debounced"
	OutcomeBusy      = "busy"
)

var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camshoter",
		Subsystem: "capture",
		Name:      "batches_total",
		Help:      "Capture batches run",
	})

	batchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camshoter",
		Subsystem: "capture",
		Name:      "batch_errors_total",
		Help:      "Capture batches aborted before any device was visited",
	})

	imagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camshoter",
		Subsystem: "capture",
		Name:      "images_saved_total",
		Help:      "JPEG images written",
	})

	devicesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camshoter",
		Subsystem: "capture",
		Name:      "devices_skipped_total",
		Help:      "Devices skipped during a batch",
	}, []string{"reason"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "camshoter",
		Subsystem: "capture",
		Name:      "batch_duration_seconds",
		Help:      "Wall time of a capture batch",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	triggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camshoter",
		Subsystem: "trigger",
		Name:      "events_total",
		Help:      "Trigger events by outcome",
	}, []string{"outcome"})

	devicesPresent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camshoter",
		Subsystem: "devices",
		Name:      "present",
		Help:      "Video device nodes seen by the last enumeration or hot-plug event",
	})
)

// BatchStarted counts a batch.
func BatchStarted() { batchesTotal.Inc() }

// BatchFailed counts a batch that could not create its directory.
func BatchFailed() { batchErrors.Inc() }

// BatchFinished records how long a batch took.
func BatchFinished(seconds float64) { batchDuration.Observe(seconds) }

// ImageSaved counts one written JPEG.
func ImageSaved() { imagesSaved.Inc() }

// DeviceSkipped counts a skipped device under reason.
func DeviceSkipped(reason string) { devicesSkipped.WithLabelValues(reason).Inc() }

// Trigger counts a trigger event under outcome.
func Trigger(outcome string) { triggers.WithLabelValues(outcome).Inc() }

// SetDevicesPresent records the number of device nodes currently present.
func SetDevicesPresent(n int) { devicesPresent.Set(float64(n)) }

// AddDevicesPresent adjusts the device gauge by delta.
func AddDevicesPresent(delta int) { devicesPresent.Add(float64(delta)) }
