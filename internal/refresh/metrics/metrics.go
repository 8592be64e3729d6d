package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	OutcomeFound    = "found"
	OutcomeEmpty    = "empty"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics provides observability for the refresh workflow.
// Tracks upstream lookups, previews issued and apply results.
type Metrics struct {
	FetchTotal      *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	PreviewsIssued  prometheus.Counter
	PreviewDuration prometheus.Histogram
	AppliesTotal    *prometheus.CounterVec
	ApplyDuration   prometheus.Histogram
	ChangesApplied  *prometheus.CounterVec
	SweepsTotal     *prometheus.CounterVec
}

// New registers the refresh collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facecards_refresh_fetch_total",
			Help: "Upstream position lookups by outcome",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "facecards_refresh_fetch_duration_seconds",
			Help:    "Duration of a single position lookup including retries",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		PreviewsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "facecards_refresh_previews_issued_total",
			Help: "Preview tokens issued",
		}),
		PreviewDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "facecards_refresh_preview_duration_seconds",
			Help:    "Duration of preview generation (fetch, diff and issue)",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		}),
		AppliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facecards_refresh_applies_total",
			Help: "Apply attempts by result",
		}, []string{"result"}),
		ApplyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "facecards_refresh_apply_duration_seconds",
			Help:    "Duration of apply transactions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ChangesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facecards_refresh_changes_applied_total",
			Help: "Roster changes committed by apply, by bucket",
		}, []string{"bucket"}),
		SweepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "facecards_roster_sweeps_total",
			Help: "Verification sweeps by kind and result",
		}, []string{"kind", "result"}),
	}
}

// ObserveFetch records one position lookup.
func (m *Metrics) ObserveFetch(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(time.Since(start).Seconds())
}

// ObservePreview records a preview generation. Call with time.Now() at the start.
func (m *Metrics) ObservePreview(start time.Time) {
	if m == nil {
		return
	}
	m.PreviewsIssued.Inc()
	m.PreviewDuration.Observe(time.Since(start).Seconds())
}

// ObserveApply records an apply attempt and, on success, the committed changes.
func (m *Metrics) ObserveApply(result string, start time.Time, additions, updates, removals int) {
	if m == nil {
		return
	}
	m.AppliesTotal.WithLabelValues(result).Inc()
	m.ApplyDuration.Observe(time.Since(start).Seconds())
	m.ChangesApplied.WithLabelValues("additions").Add(float64(additions))
	m.ChangesApplied.WithLabelValues("updates").Add(float64(updates))
	m.ChangesApplied.WithLabelValues("removals").Add(float64(removals))
}

// IncrementSweep counts a finished verification sweep.
func (m *Metrics) IncrementSweep(kind, result string) {
	if m == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(kind, result).Inc()
}
