// Package frequency buckets timestamped log lines into fixed-size time windows and
// reports per-window volume and error density.
package frequency

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/timestamp"
)

// ErrNoTimestamps is returned when the text carries no recognizable timestamp.
var ErrNoTimestamps = errors.New("frequency: no timestamps found")

// Analyze extracts timestamps from text and aggregates them into windows of
// windowMinutes. A window size <= 0 falls back to model.DefaultWindowMinutes.
// When the whole batch spans less than one window, the window shrinks to
// max(1, floor(duration)) minutes.
func Analyze(text string, windowMinutes int) (*model.FrequencyReport, error) {
	return AnalyzeLines(timestamp.Extract(text), windowMinutes)
}

// AnalyzeLines is Analyze over already extracted timestamped lines.
// The input slice is not modified.
func AnalyzeLines(lines []model.TimestampedLine, windowMinutes int) (*model.FrequencyReport, error) {
	if len(lines) == 0 {
		return nil, ErrNoTimestamps
	}
	if windowMinutes <= 0 {
		windowMinutes = model.DefaultWindowMinutes
	}

	sorted := make([]model.TimestampedLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	start := sorted[0].Time
	end := sorted[len(sorted)-1].Time
	duration := end.Sub(start).Minutes()

	if duration < float64(windowMinutes) {
		windowMinutes = max(1, int(math.Floor(duration)))
	}
	size := time.Duration(windowMinutes) * time.Minute

	var windows []model.TimeWindow
	byIndex := make(map[int]int) // window index -> position in windows
	for _, tl := range sorted {
		index := int(tl.Time.Sub(start) / size)
		pos, ok := byIndex[index]
		if !ok {
			windowStart := start.Add(time.Duration(index) * size)
			windows = append(windows, model.TimeWindow{
				Index:     index,
				StartTime: windowStart,
				EndTime:   windowStart.Add(size),
			})
			pos = len(windows) - 1
			byIndex[index] = pos
		}
		windows[pos].Count++
		if logparse.IsErrorLine(tl.Line) {
			windows[pos].ErrorCount++
		}
	}

	// Lines are visited in time order, so windows are already ordered by index.
	return &model.FrequencyReport{
		TotalLogs:          len(sorted),
		DurationMinutes:    duration,
		WindowMinutes:      windowMinutes,
		Windows:            windows,
		MaxFrequencyWindow: maxWindow(windows, func(w model.TimeWindow) float64 { return float64(w.Count) }),
		MaxErrorRateWindow: maxWindow(windows, model.TimeWindow.ErrorRate),
	}, nil
}

// maxWindow returns the window with the greatest score. Ties go to the lowest index.
func maxWindow(windows []model.TimeWindow, score func(model.TimeWindow) float64) model.TimeWindow {
	best := windows[0]
	bestScore := score(best)
	for _, w := range windows[1:] {
		if s := score(w); s > bestScore || (s == bestScore && w.Index < best.Index) {
			best, bestScore = w, s
		}
	}
	return best
}
