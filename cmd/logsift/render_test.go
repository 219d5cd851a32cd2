package main

import (
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

func TestRenderReport_TruncatesSections(t *testing.T) {
	t.Parallel()

	report := &model.Report{
		ID:             "r1",
		Source:         "unit",
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LineCount:      12,
		Errors:         []string{"e1", "e2", "e3", "e4"},
		MinOccurrences: 3,
		Patterns: []model.PatternCount{
			{Pattern: "first pattern here", Count: 9},
			{Pattern: "second pattern here", Count: 4},
		},
		StructuredEntries: []model.StructuredEntry{{"b": 1.0, "a": 2.0}, {"c": "x"}},
		FrequencyError:    model.NoTimestampsMessage,
	}

	out := renderReport(report, 2)
	for _, want := range []string{"e1", "e2", "2 more", "first pattern here", "keys: a, b", "No timestamps found"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "e3") {
		t.Errorf("output should truncate errors:\n%s", out)
	}
}

func TestRenderReport_Frequency(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 1, 23, 12, 0, 0, 0, time.UTC)
	w0 := model.TimeWindow{Index: 0, StartTime: start, EndTime: start.Add(5 * time.Minute), Count: 2, ErrorCount: 1}
	w2 := model.TimeWindow{Index: 2, StartTime: start.Add(10 * time.Minute), EndTime: start.Add(15 * time.Minute), Count: 1}
	report := &model.Report{
		ID:     "r2",
		Source: "unit",
		Frequency: &model.FrequencyReport{
			TotalLogs:          3,
			DurationMinutes:    10,
			WindowMinutes:      5,
			Windows:            []model.TimeWindow{w0, w2},
			MaxFrequencyWindow: w0,
			MaxErrorRateWindow: w0,
		},
	}

	out := renderReport(report, 10)
	for _, want := range []string{"5-min windows", "2023-01-23 12:10:00", "50.0%", "busiest window     #0", "highest error rate #0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_TimestampRangeUsesTimeOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, 1, 23, 12, 0, 0, 0, time.UTC)
	report := &model.Report{
		ID:     "r3",
		Source: "unit",
		Timestamps: []model.TimestampedLine{
			{Line: "b", Time: base.Add(5 * time.Minute)},
			{Line: "a", Time: base},
			{Line: "c", Time: base.Add(20 * time.Minute)},
			{Line: "d", Time: base.Add(10 * time.Minute)},
		},
		FrequencyError: model.NoTimestampsMessage,
	}

	out := renderReport(report, 10)
	for _, want := range []string{"first 2023-01-23 12:00:00", "last  2023-01-23 12:20:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
