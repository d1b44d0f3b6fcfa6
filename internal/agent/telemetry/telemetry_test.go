package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTelemetryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := NewTelemetry(reg)
	if err != nil {
		t.Fatalf("NewTelemetry: %v", err)
	}

	tel.RecordRun(OutcomeSuccess)
	tel.RecordRun(OutcomeFailure)
	tel.RecordRun(OutcomeSuccess)
	tel.RecordRewrite()
	tel.RecordSearch("tavily", OutcomeEmpty)
	tel.RecordScrape(false)
	tel.RecordLLM(errors.New("boom"))
	tel.ObserveNode("writer", 3*time.Second)

	if got := testutil.ToFloat64(tel.runs.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successful runs, got %v", got)
	}
	if got := testutil.ToFloat64(tel.rewrites); got != 1 {
		t.Fatalf("expected 1 rewrite, got %v", got)
	}
	if got := testutil.ToFloat64(tel.searches.WithLabelValues("tavily", OutcomeEmpty)); got != 1 {
		t.Fatalf("expected empty tavily search recorded, got %v", got)
	}
	if got := testutil.ToFloat64(tel.scrapes.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Fatalf("expected failed scrape recorded, got %v", got)
	}
	if got := testutil.ToFloat64(tel.llmRequests.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Fatalf("expected failed llm call recorded, got %v", got)
	}
	if n := testutil.CollectAndCount(tel.nodeDuration); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}

	if _, err := NewTelemetry(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestNilTelemetryIsNoop(t *testing.T) {
	var tel *Telemetry
	tel.RecordRun(OutcomeSuccess)
	tel.RecordRewrite()
	tel.RecordSearch("duckduckgo", OutcomeSuccess)
	tel.RecordScrape(true)
	tel.RecordLLM(nil)
	tel.ObserveNode("editor", time.Second)
}
