package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunStats are the counters of a single entity run.
type RunStats struct {
	Entity             string
	Status             string
	Read               int
	Rejected           int
	Stale              int
	VersionsOpened     int
	VersionsClosed     int
	RowsUpserted       int
	OrderingViolations int
	Watermark          time.Time
	Duration           time.Duration
}

// Registry keeps the run metrics in a private registry, written out once the run is over.
type Registry struct {
	reg *prometheus.Registry

	Runs               *prometheus.CounterVec
	RecordsRead        *prometheus.CounterVec
	RecordsRejected    *prometheus.CounterVec
	RecordsStale       *prometheus.CounterVec
	VersionsOpened     *prometheus.CounterVec
	VersionsClosed     *prometheus.CounterVec
	RowsUpserted       *prometheus.CounterVec
	OrderingViolations *prometheus.CounterVec
	Watermark          *prometheus.GaugeVec
	Duration           *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	entity := []string{"entity"}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "historian", Name: name, Help: help}, labels)
	}

	registry := &Registry{
		reg:                r,
		Runs:               counter("entity_runs_total", "Entity runs by final status.", "entity", "status"),
		RecordsRead:        counter("records_read_total", "Records read from the entity source.", entity...),
		RecordsRejected:    counter("records_rejected_total", "Records dropped by validation.", entity...),
		RecordsStale:       counter("records_stale_total", "Records at or below the watermark.", entity...),
		VersionsOpened:     counter("versions_opened_total", "History versions inserted.", entity...),
		VersionsClosed:     counter("versions_closed_total", "History versions closed.", entity...),
		RowsUpserted:       counter("rows_upserted_total", "Current-state rows written.", entity...),
		OrderingViolations: counter("ordering_violations_total", "Records rejected for arriving out of order.", entity...),
		Watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "historian",
			Name:      "watermark_timestamp_seconds",
			Help:      "Watermark of the entity after the run.",
		}, entity),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "historian",
			Name:      "entity_run_duration_seconds",
			Help:      "Duration of entity runs including retries.",
			Buckets:   prometheus.DefBuckets,
		}, entity),
	}

	r.MustRegister(
		registry.Runs,
		registry.RecordsRead,
		registry.RecordsRejected,
		registry.RecordsStale,
		registry.VersionsOpened,
		registry.VersionsClosed,
		registry.RowsUpserted,
		registry.OrderingViolations,
		registry.Watermark,
		registry.Duration,
	)
	return registry
}

func (r *Registry) Observe(s RunStats) {
	r.Runs.WithLabelValues(s.Entity, s.Status).Inc()
	r.RecordsRead.WithLabelValues(s.Entity).Add(float64(s.Read))
	r.RecordsRejected.WithLabelValues(s.Entity).Add(float64(s.Rejected))
	r.RecordsStale.WithLabelValues(s.Entity).Add(float64(s.Stale))
	r.VersionsOpened.WithLabelValues(s.Entity).Add(float64(s.VersionsOpened))
	r.VersionsClosed.WithLabelValues(s.Entity).Add(float64(s.VersionsClosed))
	r.RowsUpserted.WithLabelValues(s.Entity).Add(float64(s.RowsUpserted))
	r.OrderingViolations.WithLabelValues(s.Entity).Add(float64(s.OrderingViolations))
	if !s.Watermark.IsZero() {
		r.Watermark.WithLabelValues(s.Entity).Set(float64(s.Watermark.Unix()))
	}
	r.Duration.WithLabelValues(s.Entity).Observe(s.Duration.Seconds())
}

// WriteToTextfile writes the metrics in the node exporter textfile format.
func (r *Registry) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
