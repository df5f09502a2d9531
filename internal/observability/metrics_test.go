package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveSnapshotOp("save", "ok")
	m.SetStorageUp("memory", true)
	m.ApiInflightInc()
	m.ApiInflightDec()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus on nil: %v", err)
	}
}

func TestInitMetricsDisabled(t *testing.T) {
	if m := InitMetrics(MetricsConfig{}); m != nil {
		t.Fatalf("InitMetrics disabled: want nil got=%v", m)
	}
}

func TestCounterVecExposition(t *testing.T) {
	c := NewCounterVec("mb_test_total", "Test counter.", []string{"op", "outcome"})
	c.Inc("save", "ok")
	c.Inc("save", "ok")
	c.Inc("load", `bad"quote`)
	if got := c.Value("save", "ok"); got != 2 {
		t.Fatalf("Value: want=2 got=%v", got)
	}
	var buf bytes.Buffer
	if err := c.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# TYPE mb_test_total counter",
		`mb_test_total{op="save",outcome="ok"} 2.000000`,
		`mb_test_total{op="load",outcome="bad\"quote"} 1.000000`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q in:\n%s", want, out)
		}
	}
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogramVec("mb_test_seconds", "Test histogram.", []string{"route"}, []float64{0.1, 1})
	h.Observe(0.05, "/save")
	h.Observe(0.5, "/save")
	h.Observe(5, "/save")
	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`mb_test_seconds_bucket{route="/save",le="0.1"} 1`,
		`mb_test_seconds_bucket{route="/save",le="1"} 2`,
		`mb_test_seconds_bucket{route="/save",le="+Inf"} 3`,
		`mb_test_seconds_count{route="/save"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q in:\n%s", want, out)
		}
	}
}

func TestGaugeIncDec(t *testing.T) {
	g := NewGauge("mb_test_inflight", "Test gauge.")
	g.Inc()
	g.Inc()
	g.Dec()
	var buf bytes.Buffer
	if err := g.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(buf.String(), "mb_test_inflight 1.000000") {
		t.Fatalf("gauge exposition: got=%s", buf.String())
	}
}
