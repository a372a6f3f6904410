// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus instruments of the pipeline. They
// register with the default registry on import.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	CycleState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spectrallog_cycle_state",
		Help: "Current state of the cycle driver (0 idle, 1 acquiring, 2 transforming, 3 persisting, 4 pacing, 5 failed)",
	})
	BinAverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spectrallog_bin_average",
		Help: "Running average magnitude per tracked frequency bin",
	}, []string{"bin"})
)

// Counters
var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectrallog_cycles_total",
		Help: "Total completed cycles",
	})
	AcquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectrallog_acquisitions_total",
		Help: "Total successful acquisitions",
	})
	AcquisitionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spectrallog_acquisition_errors_total",
		Help: "Total failed acquisitions by driver status code",
	}, []string{"code"})
	AcquisitionRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectrallog_acquisition_retries_total",
		Help: "Total acquisition retries after EBUSY",
	})
	WindowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectrallog_windows_total",
		Help: "Total analysis windows transformed",
	})
	PersistErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spectrallog_persist_errors_total",
		Help: "Total failed persists by stage",
	}, []string{"stage"})
	TransportErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spectrallog_transport_errors_total",
		Help: "Total snapshot publish failures",
	})
)

// Histograms
var (
	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spectrallog_persist_duration_seconds",
		Help:    "Time from issuing a record write to its completion",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
	})
)

// SetBinAverages publishes the tracked averages, the first one being bin
// first.
func SetBinAverages(first int, avgs []float32) {
	for i, v := range avgs {
		BinAverage.WithLabelValues(strconv.Itoa(first + i)).Set(float64(v))
	}
}
