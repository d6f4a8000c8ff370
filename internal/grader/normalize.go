package grader

import "strings"

// NormalizeOutput canonicalizes program output before comparison: all runs
// of whitespace collapse to a single space, leading and trailing whitespace
// is trimmed, and case is folded. "  Hello\nWorld " and "hello world" grade
// as equal.
func NormalizeOutput(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// OutputMatches reports whether actual output matches the expected output
// under normalization.
func OutputMatches(actual, expected string) bool {
	return NormalizeOutput(actual) == NormalizeOutput(expected)
}
