package logparse

import (
	"encoding/json"
	"strings"

	"github.com/tinytelemetry/logsift/internal/model"
)

// ExtractStructuredEntries decodes the JSON object spanning the first '{' and the
// last '}' of every line. Lines without such a span, or whose span is not a valid
// JSON object, are skipped.
func ExtractStructuredEntries(text string) []model.StructuredEntry {
	entries := []model.StructuredEntry{}
	for _, line := range Lines(text) {
		if entry, ok := parseEmbeddedJSON(line); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseEmbeddedJSON(line string) (model.StructuredEntry, bool) {
	start := strings.IndexByte(line, '{')
	end := strings.LastIndexByte(line, '}')
	if start < 0 || start >= end {
		return nil, false
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line[start:end+1]), &raw); err != nil {
		return nil, false
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, true
}
