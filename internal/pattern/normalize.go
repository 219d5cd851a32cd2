// Package pattern collapses volatile tokens in log lines so that repeated events
// reduce to one template with a count.
package pattern

import "regexp"

// Placeholder tokens substituted for volatile values.
const (
	PlaceholderTimestamp = "<TIMESTAMP>"
	PlaceholderUUID      = "<UUID>"
	PlaceholderHash      = "<HASH>"
	PlaceholderIP        = "<IP>"
)

type substitution struct {
	re          *regexp.Regexp
	placeholder string
}

// substitutions run in order. The space-separated timestamp takes an optional
// millisecond part so the fraction is folded into the placeholder.
var substitutions = []substitution{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}.\d{3}Z`), PlaceholderTimestamp},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}`), PlaceholderTimestamp},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:\.\d{3})?`), PlaceholderTimestamp},
	{regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), PlaceholderUUID},
	{regexp.MustCompile(`\b([0-9a-f]{32}|[0-9a-f]{40}|[0-9a-f]{64})\b`), PlaceholderHash},
	{regexp.MustCompile(`\b\d+\.\d+\.\d+\.\d+\b`), PlaceholderIP},
}

// Normalize replaces timestamps, UUIDs, hex hashes and IPv4 addresses in line
// with placeholder tokens. Normalize(Normalize(s)) == Normalize(s).
func Normalize(line string) string {
	for _, s := range substitutions {
		line = s.re.ReplaceAllLiteralString(line, s.placeholder)
	}
	return line
}
