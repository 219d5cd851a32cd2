package pattern

import (
	"sort"
	"unicode/utf8"

	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/model"
)

// MinLineLength is the shortest line, in characters, considered for pattern analysis.
const MinLineLength = 10

// FindCommon counts normalized line templates in text and returns those seen at
// least minOccurrences times, most frequent first. Templates with equal counts keep
// the order in which they first appeared.
func FindCommon(text string, minOccurrences int) []model.PatternCount {
	counts := make(map[string]int)
	var order []string

	for _, line := range logparse.Lines(text) {
		if utf8.RuneCountInString(line) < MinLineLength {
			continue
		}
		normalized := Normalize(line)
		if _, seen := counts[normalized]; !seen {
			order = append(order, normalized)
		}
		counts[normalized]++
	}

	common := []model.PatternCount{}
	for _, p := range order {
		if counts[p] >= minOccurrences {
			common = append(common, model.PatternCount{Pattern: p, Count: counts[p]})
		}
	}

	sort.SliceStable(common, func(i, j int) bool {
		return common[i].Count > common[j].Count
	})
	return common
}
