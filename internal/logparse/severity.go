package logparse

import "strings"

// ErrorTerms are the lowercase substrings that mark a line as an error line
// for frequency analysis.
var ErrorTerms = []string{"error", "exception", "failed", "fatal"}

// IsErrorLine reports whether line contains any of ErrorTerms, ignoring case.
func IsErrorLine(line string) bool {
	lower := strings.ToLower(line)
	for _, term := range ErrorTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
