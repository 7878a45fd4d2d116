// Package monitoring exposes build metrics through Prometheus and
// summarizes cache state for status reports.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "citycache"

// Lookup outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeNotFound  = "not_found"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// Metrics holds the counters and histograms for cache builds.
type Metrics struct {
	Lookups        *prometheus.CounterVec // labels: outcome
	LookupDuration prometheus.Histogram
	Retries        prometheus.Counter
	PacerWait      prometheus.Counter

	GroupsProcessed prometheus.Counter
	GroupsSkipped   prometheus.Counter
	CacheSaves      prometheus.Counter
	CacheRecords    prometheus.Gauge

	ExpandedPlaces prometheus.Counter
	LastSuccess    prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg leaves them
// unregistered, which suits tests and one-off commands.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Geocoding lookups by outcome.",
		}, []string{"outcome"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of a lookup including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_retries_total",
			Help:      "Retries of transient lookup failures.",
		}),
		PacerWait: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pacer_wait_seconds_total",
			Help:      "Time spent waiting to respect the lookup rate.",
		}),
		GroupsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_processed_total",
			Help:      "Groups that had pending names.",
		}),
		GroupsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_skipped_total",
			Help:      "Groups already complete in the cache.",
		}),
		CacheSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_saves_total",
			Help:      "Cache file writes.",
		}),
		CacheRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_records",
			Help:      "Records in the cache after the last save.",
		}),
		ExpandedPlaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expanded_places_total",
			Help:      "Places appended from place search.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without error.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.Lookups, m.LookupDuration, m.Retries, m.PacerWait,
			m.GroupsProcessed, m.GroupsSkipped, m.CacheSaves, m.CacheRecords,
			m.ExpandedPlaces, m.LastSuccess,
		} {
			if err := reg.Register(c); err != nil {
				return nil, eris.Wrap(err, "monitoring: register metrics")
			}
		}
	}
	return m, nil
}

// NewUnregistered returns metrics that are not attached to any registry.
func NewUnregistered() *Metrics {
	m, _ := New(nil)
	return m
}

// WriteTextfile writes everything g gathers to path in the node-exporter
// textfile format. The write is atomic.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}
