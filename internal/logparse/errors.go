package logparse

import (
	"regexp"
	"strings"
)

// errorPatterns match explicit error markers. Each captures the rest of the line.
// Order matters: results are grouped by pattern, in this order.
var errorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Error: (.*)`),
	regexp.MustCompile(`ERROR: (.*)`),
	regexp.MustCompile(`Exception: (.*)`),
	regexp.MustCompile(`Failed: (.*)`),
	regexp.MustCompile(`\[error\] (.*)`),
	regexp.MustCompile(`\[ERROR\] (.*)`),
	regexp.MustCompile(`fatal: (.*)`),
}

// ExtractErrorMessages returns the message following every error marker in text.
// Each pattern is evaluated independently over the whole text, so a line carrying
// two markers yields two messages.
func ExtractErrorMessages(text string) []string {
	errs := []string{}
	for _, re := range errorPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			errs = append(errs, strings.TrimSpace(m[1]))
		}
	}
	return errs
}
