package model

import "time"

// StructuredEntry is one JSON object found embedded in a log line.
type StructuredEntry = map[string]any

// TimestampedLine pairs a trimmed log line with the instant parsed from it.
type TimestampedLine struct {
	Line string    `json:"line"`
	Time time.Time `json:"time"`
}

// PatternCount is a normalized line template and the number of lines that produced it.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// TimeWindow holds line and error counts for one fixed-size bucket.
// Index is 0-based relative to the earliest timestamp in the batch.
type TimeWindow struct {
	Index      int       `json:"index"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Count      int       `json:"count"`
	ErrorCount int       `json:"error_count"`
}

// ErrorRate returns error_count / max(count, 1).
func (w TimeWindow) ErrorRate() float64 {
	count := w.Count
	if count < 1 {
		count = 1
	}
	return float64(w.ErrorCount) / float64(count)
}

// FrequencyReport aggregates all windows of one frequency analysis.
type FrequencyReport struct {
	TotalLogs          int          `json:"total_logs"`
	DurationMinutes    float64      `json:"duration_minutes"`
	WindowMinutes      int          `json:"time_window_minutes"`
	Windows            []TimeWindow `json:"windows"` // ordered by Index
	MaxFrequencyWindow TimeWindow   `json:"max_frequency_window"`
	MaxErrorRateWindow TimeWindow   `json:"max_error_rate_window"`
}

// Report is the combined output of every analysis over one log blob.
type Report struct {
	ID                string            `json:"id"`
	Source            string            `json:"source"`
	CreatedAt         time.Time         `json:"created_at"`
	LineCount         int               `json:"line_count"`
	Errors            []string          `json:"errors"`
	StructuredEntries []StructuredEntry `json:"structured_entries"`
	Timestamps        []TimestampedLine `json:"timestamps"`
	Patterns          []PatternCount    `json:"patterns"`
	MinOccurrences    int               `json:"min_occurrences"`
	Frequency         *FrequencyReport  `json:"frequency,omitempty"`
	FrequencyError    string            `json:"frequency_error,omitempty"` // set when Frequency is nil
}

// ReportSummary is the list view of a stored report.
type ReportSummary struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"created_at"`
	LineCount       int       `json:"line_count"`
	ErrorCount      int       `json:"error_count"`
	StructuredCount int       `json:"structured_count"`
	TimestampCount  int       `json:"timestamp_count"`
	PatternCount    int       `json:"pattern_count"`
	WindowMinutes   int       `json:"time_window_minutes"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// Summary derives the list view of r.
func (r *Report) Summary() ReportSummary {
	s := ReportSummary{
		ID:              r.ID,
		Source:          r.Source,
		CreatedAt:       r.CreatedAt,
		LineCount:       r.LineCount,
		ErrorCount:      len(r.Errors),
		StructuredCount: len(r.StructuredEntries),
		TimestampCount:  len(r.Timestamps),
		PatternCount:    len(r.Patterns),
	}
	if r.Frequency != nil {
		s.WindowMinutes = r.Frequency.WindowMinutes
		s.DurationMinutes = r.Frequency.DurationMinutes
	}
	return s
}
