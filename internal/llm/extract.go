package llm

import (
	"encoding/json"
	"strings"

	"github.com/vintera/labelforge/internal/fault"
)

// ExtractJSON pulls the first complete JSON value out of model output,
// tolerating surrounding prose and markdown fences. Models are told to
// answer with bare JSON, but they don't always listen.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)

	// Strip a markdown fence if the whole reply is wrapped in one.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, fault.Validation("model output contains no JSON value").
			With("output_prefix", prefix(s, 120))
	}

	candidate := s[start:]
	end := balancedEnd(candidate)
	if end < 0 {
		return nil, fault.Validation("model output contains an unterminated JSON value").
			With("output_prefix", prefix(s, 120))
	}
	candidate = candidate[:end]

	if !json.Valid([]byte(candidate)) {
		return nil, fault.Validation("extracted text is not valid JSON").
			With("output_prefix", prefix(candidate, 120))
	}
	return json.RawMessage(candidate), nil
}

// balancedEnd returns the index one past the end of the first balanced
// JSON object or array in s, or -1. Braces inside strings are ignored.
func balancedEnd(s string) int {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
