package util

import "strings"

// StripCodeFences unwraps a ```json ... ``` block that models like to send
// instead of bare JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if strings.HasPrefix(strings.ToLower(s), "json") {
		s = s[len("json"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
