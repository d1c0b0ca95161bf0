package octobloom

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the registry and reconciler.
type Metrics struct {
	Lookups        *prometheus.CounterVec
	Registrations  prometheus.Counter
	TrackedFilters prometheus.Gauge
	MemoryUsed     prometheus.Gauge
	Rebuilds       *prometheus.CounterVec
}

// Lookup outcome label values.
const (
	lookupOutcomeMaybe    = "maybe"
	lookupOutcomeNegative = "negative"
	lookupOutcomeNoFilter = "no_filter"
)

// Rebuild outcome label values.
const (
	rebuildOutcomeRebuilt = "rebuilt"
	rebuildOutcomeResized = "resized"
	rebuildOutcomeFailed  = "failed"
	rebuildOutcomeSkipped = "skipped"
)

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "octobloom_lookups_total",
		Help: "Total membership lookups by outcome",
	}, []string{"outcome"})

	registrations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "octobloom_registrations_total",
		Help: "Total successful filter registrations",
	})

	trackedFilters := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "octobloom_tracked_filters",
		Help: "Number of filters currently tracked by the registry",
	})

	memoryUsed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "octobloom_memory_used_bytes",
		Help: "Total bytes used by filter bit arrays",
	})

	rebuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "octobloom_rebuilds_total",
		Help: "Total reconciler rebuild attempts by outcome",
	}, []string{"outcome"})

	reg.MustRegister(lookups, registrations, trackedFilters, memoryUsed, rebuilds)

	return &Metrics{
		Lookups:        lookups,
		Registrations:  registrations,
		TrackedFilters: trackedFilters,
		MemoryUsed:     memoryUsed,
		Rebuilds:       rebuilds,
	}
}
