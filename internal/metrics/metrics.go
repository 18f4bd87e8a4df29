// Package metrics exposes Prometheus counters for soft-delete activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts soft deletes, restores and slug collisions per model.
type Recorder struct {
	softDeletes    *prometheus.CounterVec
	restores       *prometheus.CounterVec
	slugCollisions *prometheus.CounterVec
}

// NewRecorder registers the counters on registry, or on the default registry when nil.
func NewRecorder(registry prometheus.Registerer) *Recorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Recorder{
		softDeletes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_soft_deletes_total",
				Help: "Records hidden by a soft delete, by model and mode (single or bulk)",
			},
			[]string{"model", "mode"},
		),
		restores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_restores_total",
				Help: "Soft-deleted records brought back",
			},
			[]string{"model"},
		),
		slugCollisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_slug_collisions_total",
				Help: "Slug probes that found the candidate taken while restoring",
			},
			[]string{"model"},
		),
	}
}

// SoftDeleted records n records hidden by one call.
func (r *Recorder) SoftDeleted(model string, bulk bool, n int64) {
	if r == nil || n <= 0 {
		return
	}
	mode := "single"
	if bulk {
		mode = "bulk"
	}
	r.softDeletes.WithLabelValues(model, mode).Add(float64(n))
}

// Restored records one restore.
func (r *Recorder) Restored(model string) {
	if r == nil {
		return
	}
	r.restores.WithLabelValues(model).Inc()
}

// SlugCollision records one taken slug candidate.
func (r *Recorder) SlugCollision(model string) {
	if r == nil {
		return
	}
	r.slugCollisions.WithLabelValues(model).Inc()
}
