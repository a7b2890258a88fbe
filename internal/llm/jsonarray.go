package llm

import "strings"

// ExtractJSONArray locates the first '[' and last ']' in a completion and
// returns the slice between them. Models wrap structured output in prose or
// markdown fences often enough that strict parsing of the raw text is not
// viable.
func ExtractJSONArray(content string) (string, bool) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}
