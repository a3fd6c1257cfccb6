package utils

import "strings"

// ThinkingDelimiter closes the chain-of-thought block emitted by reasoning models.
const ThinkingDelimiter = "</think>"

// IsReasoningModel reports whether model contains any of the markers,
// ignoring case.
func IsReasoningModel(model string, markers []string) bool {
	lower := strings.ToLower(model)
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" && strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// StripReasoning drops everything up to and including the last thinking
// delimiter and trims the remainder.
func StripReasoning(text string) string {
	if i := strings.LastIndex(text, ThinkingDelimiter); i >= 0 {
		text = text[i+len(ThinkingDelimiter):]
	}
	return strings.TrimSpace(text)
}

// SplitList splits a comma separated value, dropping empty entries.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
