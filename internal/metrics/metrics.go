// Package metrics defines the minimal metrics surface the pipeline emits to.
//
// The pipeline code depends only on Backend; concrete exporters live in
// subpackages. A run that does not configure metrics uses Nop.
package metrics

// Labels are free-form metric dimensions, e.g. {"stage": "load", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the pipeline.
const (
	MetricStageTotal           = "warehouse_stage_total"
	MetricStageDurationSeconds = "warehouse_stage_duration_seconds"
	MetricRowsTotal            = "warehouse_rows_total"
	MetricVersionsTotal        = "warehouse_dim_versions_total"
	MetricSkipsTotal           = "warehouse_skips_total"
)

// Nop discards every observation.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
