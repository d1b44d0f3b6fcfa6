package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeEmpty   = "empty"
)

// Telemetry holds the Prometheus collectors for pipeline and tool activity.
// A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	runs         *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	rewrites     prometheus.Counter
	searches     *prometheus.CounterVec
	scrapes      *prometheus.CounterVec
	llmRequests  *prometheus.CounterVec
}

// NewTelemetry creates the collectors and registers them on reg when it is
// not nil.
func NewTelemetry(reg prometheus.Registerer) (*Telemetry, error) {
	t := &Telemetry{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchflow",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by terminal outcome.",
		}, []string{"outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researchflow",
			Name:      "node_duration_seconds",
			Help:      "Wall time spent inside each pipeline node.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"node"}),
		rewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "researchflow",
			Name:      "rewrites_total",
			Help:      "Drafts sent back to the writer by the quality gate.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchflow",
			Name:      "search_requests_total",
			Help:      "Search provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchflow",
			Name:      "scrapes_total",
			Help:      "Page scrapes by outcome.",
		}, []string{"outcome"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchflow",
			Name:      "llm_requests_total",
			Help:      "LLM completion calls by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{t.runs, t.nodeDuration, t.rewrites, t.searches, t.scrapes, t.llmRequests} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Telemetry) RecordRun(outcome string) {
	if t == nil {
		return
	}
	t.runs.WithLabelValues(outcome).Inc()
}

func (t *Telemetry) ObserveNode(node string, d time.Duration) {
	if t == nil {
		return
	}
	t.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

func (t *Telemetry) RecordRewrite() {
	if t == nil {
		return
	}
	t.rewrites.Inc()
}

func (t *Telemetry) RecordSearch(provider, outcome string) {
	if t == nil {
		return
	}
	t.searches.WithLabelValues(provider, outcome).Inc()
}

func (t *Telemetry) RecordScrape(success bool) {
	if t == nil {
		return
	}
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeFailure
	}
	t.scrapes.WithLabelValues(outcome).Inc()
}

func (t *Telemetry) RecordLLM(err error) {
	if t == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	t.llmRequests.WithLabelValues(outcome).Inc()
}
