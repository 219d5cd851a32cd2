package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/logsift/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

const windowTimeLayout = "2006-01-02 15:04:05"

// renderReport formats report for a terminal. Each list section shows at most top entries.
func renderReport(report *model.Report, top int) string {
	if top <= 0 {
		top = 10
	}
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("logsift report"), dimStyle.Render(report.ID))
	fmt.Fprintf(&b, "  source %s · %d lines · %s\n\n",
		report.Source, report.LineCount, report.CreatedAt.Format(time.RFC3339))

	section(&b, "Errors", len(report.Errors))
	for i, msg := range report.Errors {
		if i == top {
			moreLine(&b, len(report.Errors)-top)
			break
		}
		fmt.Fprintf(&b, "  %s %s\n", errorStyle.Render("✗"), msg)
	}

	section(&b, "Structured entries", len(report.StructuredEntries))
	if len(report.StructuredEntries) > 0 {
		fmt.Fprintf(&b, "  keys: %s\n", strings.Join(structuredKeys(report.StructuredEntries, top), ", "))
	}

	section(&b, "Timestamps", len(report.Timestamps))
	if len(report.Timestamps) > 0 {
		first, last := timeRange(report.Timestamps)
		fmt.Fprintf(&b, "  first %s\n", first.Format(windowTimeLayout))
		fmt.Fprintf(&b, "  last  %s\n", last.Format(windowTimeLayout))
	}

	section(&b, fmt.Sprintf("Patterns (>= %d occurrences)", report.MinOccurrences), len(report.Patterns))
	for i, p := range report.Patterns {
		if i == top {
			moreLine(&b, len(report.Patterns)-top)
			break
		}
		fmt.Fprintf(&b, "  %s  %s\n", countStyle.Render(fmt.Sprintf("%6d", p.Count)), p.Pattern)
	}

	b.WriteString(headingStyle.Render("Frequency") + "\n")
	if report.Frequency == nil {
		msg := report.FrequencyError
		if msg == "" {
			msg = model.NoTimestampsMessage
		}
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(msg))
		return b.String()
	}
	renderFrequency(&b, report.Frequency, top)
	return b.String()
}

func renderFrequency(b *strings.Builder, f *model.FrequencyReport, top int) {
	fmt.Fprintf(b, "  %d timestamped lines over %.1f min, %d-min windows\n",
		f.TotalLogs, f.DurationMinutes, f.WindowMinutes)
	fmt.Fprintf(b, "  %s\n", dimStyle.Render(fmt.Sprintf("%-6s %-19s %7s %7s %7s", "window", "start", "lines", "errors", "rate")))
	for i, w := range f.Windows {
		if i == top {
			moreLine(b, len(f.Windows)-top)
			break
		}
		rate := fmt.Sprintf("%6.1f%%", w.ErrorRate()*100)
		if w.ErrorCount > 0 {
			rate = errorStyle.Render(rate)
		} else {
			rate = okStyle.Render(rate)
		}
		fmt.Fprintf(b, "  %-6d %-19s %7d %7d %s\n", w.Index, w.StartTime.Format(windowTimeLayout), w.Count, w.ErrorCount, rate)
	}
	fmt.Fprintf(b, "  busiest window     #%d (%d lines)\n", f.MaxFrequencyWindow.Index, f.MaxFrequencyWindow.Count)
	fmt.Fprintf(b, "  highest error rate #%d (%.1f%%)\n", f.MaxErrorRateWindow.Index, f.MaxErrorRateWindow.ErrorRate()*100)
}

func section(b *strings.Builder, title string, count int) {
	fmt.Fprintf(b, "%s %s\n", headingStyle.Render(title), dimStyle.Render(fmt.Sprintf("(%d)", count)))
}

func moreLine(b *strings.Builder, n int) {
	fmt.Fprintf(b, "  %s\n", dimStyle.Render(fmt.Sprintf("… %d more", n)))
}

// structuredKeys lists distinct keys in sorted order, capped at limit.
func structuredKeys(entries []model.StructuredEntry, limit int) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, e := range entries {
		for k := range e {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// timeRange returns the earliest and latest instants in lines, which are in
// line order rather than time order.
func timeRange(lines []model.TimestampedLine) (first, last time.Time) {
	first, last = lines[0].Time, lines[0].Time
	for _, tl := range lines[1:] {
		if tl.Time.Before(first) {
			first = tl.Time
		}
		if tl.Time.After(last) {
			last = tl.Time
		}
	}
	return first, last
}
