package timestamp

import (
	"regexp"
	"time"

	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/model"
)

// Format names, in priority order.
const (
	FormatISOMillisZ = "iso8601-millis-z"
	FormatISOOffset  = "iso8601-offset"
	FormatSpace      = "space"
	FormatSpaceMilli = "space-millis"
)

// format pairs a matcher with the layout used to parse what it matched.
type format struct {
	name   string
	re     *regexp.Regexp
	layout string
	// normalize adjusts the submatches before parsing. ok=false means the line
	// does not match this format.
	normalize func(m []string) (value string, ok bool)
}

// formats are tried in order; the first one that matches and parses wins.
var formats = []format{
	{
		name:   FormatISOMillisZ,
		re:     regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z)`),
		layout: "2006-01-02T15:04:05.000Z",
	},
	{
		name:      FormatISOOffset,
		re:        regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2})`),
		layout:    "2006-01-02T15:04:05-0700",
		normalize: compactOffset,
	},
	{
		name:   FormatSpace,
		re:     regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})(\.\d{3})?`),
		layout: "2006-01-02 15:04:05",
		normalize: func(m []string) (string, bool) {
			// Three or more fractional digits belong to the millisecond format.
			// Shorter fractions are ignored and the whole seconds parsed.
			if m[2] != "" {
				return "", false
			}
			return m[1], true
		},
	},
	{
		name:   FormatSpaceMilli,
		re:     regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`),
		layout: "2006-01-02 15:04:05.000",
	},
}

// compactOffset rewrites a trailing ±HH:MM offset as ±HHMM.
func compactOffset(m []string) (string, bool) {
	s := m[1]
	n := len(s)
	return s[:n-3] + s[n-2:], true
}

// Result is the outcome of looking for a timestamp in one line.
type Result struct {
	Timestamp time.Time
	Found     bool
	Format    string
}

// ParseFromText finds the first supported timestamp in line.
// Timestamps without an explicit offset are read as UTC.
func ParseFromText(line string) Result {
	for _, f := range formats {
		m := f.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := m[1]
		if f.normalize != nil {
			var ok bool
			if value, ok = f.normalize(m); !ok {
				continue
			}
		}
		ts, err := time.Parse(f.layout, value)
		if err != nil {
			continue
		}
		return Result{Timestamp: ts, Found: true, Format: f.name}
	}
	return Result{}
}

// ParseLine returns the timestamp found in line, if any.
func ParseLine(line string) (time.Time, bool) {
	r := ParseFromText(line)
	return r.Timestamp, r.Found
}

// Extract returns every line of text that carries a supported timestamp,
// in original line order.
func Extract(text string) []model.TimestampedLine {
	out := []model.TimestampedLine{}
	for _, line := range logparse.Lines(text) {
		if ts, ok := ParseLine(line); ok {
			out = append(out, model.TimestampedLine{Line: line, Time: ts})
		}
	}
	return out
}
