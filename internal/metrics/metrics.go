package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/insitu-feed-adapter/internal/feed"
)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeOK                  = "ok"
	OutcomeStopped             = "stopped"
	OutcomeRequestBuild        = "request_build_error"
	OutcomeTransport           = "transport_error"
	OutcomeRecordValidation    = "record_validation_error"
	OutcomeUnexpectedStructure = "unexpected_structure"
	OutcomeOther               = "error"
)

// FeedMetrics holds Prometheus collectors for adapter fetches.
type FeedMetrics struct {
	fetches  *prometheus.CounterVec   // Fetches by dataset and outcome
	rows     *prometheus.CounterVec   // Rows delivered by dataset
	chunks   *prometheus.CounterVec   // Chunks delivered by dataset
	duration *prometheus.HistogramVec // Fetch latency by dataset
}

// New creates feed metrics and registers them with reg.
func New(reg prometheus.Registerer) (*FeedMetrics, error) {
	m := &FeedMetrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insitu",
			Subsystem: "feed",
			Name:      "fetches_total",
			Help:      "Source fetches by outcome",
		}, []string{"dataset", "outcome"}),

		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insitu",
			Subsystem: "feed",
			Name:      "rows_total",
			Help:      "Rows handed to consumers",
		}, []string{"dataset"}),

		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insitu",
			Subsystem: "feed",
			Name:      "chunks_total",
			Help:      "Chunks handed to consumers",
		}, []string{"dataset"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insitu",
			Subsystem: "feed",
			Name:      "fetch_duration_seconds",
			Help:      "Time from request build to final chunk",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"dataset"}),
	}

	for _, c := range []prometheus.Collector{m.fetches, m.rows, m.chunks, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FetchCompleted implements feed.Recorder.
func (m *FeedMetrics) FetchCompleted(datasetID string, res feed.Result, err error) {
	m.fetches.WithLabelValues(datasetID, Outcome(res, err)).Inc()
	m.rows.WithLabelValues(datasetID).Add(float64(res.Rows))
	m.chunks.WithLabelValues(datasetID).Add(float64(res.Chunks))
	m.duration.WithLabelValues(datasetID).Observe(res.Elapsed.Seconds())
}

// Outcome classifies a fetch result for labelling.
func Outcome(res feed.Result, err error) string {
	switch {
	case err == nil && res.Stopped:
		return OutcomeStopped
	case err == nil:
		return OutcomeOK
	case errors.Is(err, feed.ErrRequestBuild):
		return OutcomeRequestBuild
	case errors.Is(err, feed.ErrTransport):
		return OutcomeTransport
	case errors.Is(err, feed.ErrRecordValidation):
		return OutcomeRecordValidation
	case errors.Is(err, feed.ErrUnexpectedStructure):
		return OutcomeUnexpectedStructure
	default:
		return OutcomeOther
	}
}
