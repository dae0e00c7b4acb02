// Package llmjson cleans completion-service output before JSON decoding.
// Providers routinely wrap JSON payloads in markdown code fences even when
// asked not to.
package llmjson

import "strings"

// Clean strips surrounding markdown code fences and whitespace from a
// completion response so it can be passed to json.Unmarshal.
func Clean(response string) string {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
