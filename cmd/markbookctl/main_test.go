package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yungbote/markbook-backend/internal/markbook"
)

func TestPrintSummary(t *testing.T) {
	store := markbook.NewSampleStore()
	store.AddWeek("W1")
	store.AddWeek("W2")
	store.SetMetricValue(1, markbook.MetricHousePoints, "W2", "5")
	store.ToggleMetricVisibility(markbook.MetricReadingSessions)
	store.ToggleMetricVisibility(markbook.MetricHomeworkCompleted)

	var buf bytes.Buffer
	if err := printSummary(&buf, store.State()); err != nil {
		t.Fatalf("printSummary: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "HOUSE POINTS AVG") {
		t.Fatalf("header missing: %s", out)
	}
	if strings.Contains(out, "READING") {
		t.Fatalf("hidden metric printed: %s", out)
	}
	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[1], "Emma Johnson") || !strings.Contains(lines[1], "5.0") {
		t.Fatalf("emma row: got=%q", lines[1])
	}
	if !strings.Contains(out, "2 student(s), 2 week(s)") {
		t.Fatalf("footer missing: %s", out)
	}
}
