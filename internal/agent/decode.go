package agent

import (
	"encoding/json"
	"strings"
)

// extractObject returns the outermost JSON object span in text, from the
// first '{' to the last '}'. ok is false when no such span exists.
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeOutput parses a model reply into a loose output map. A reply
// without a parseable object is preserved verbatim under "summary", so a
// sloppy reply degrades the output instead of failing the task.
func decodeOutput(text string) map[string]any {
	if raw, ok := extractObject(text); ok {
		var out map[string]any
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	return map[string]any{"summary": text}
}

// decodePlan parses a planning reply. An unparseable reply becomes a valid
// empty plan whose summary carries the raw text.
func decodePlan(text string) *Plan {
	if raw, ok := extractObject(text); ok {
		var p Plan
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p
		}
	}
	return &Plan{Summary: text}
}
