package verify

import "strings"

// ClassTokens splits a class attribute into its whitespace-separated names
func ClassTokens(attr string) []string {
	return strings.Fields(attr)
}

// HasClassToken reports whether token is one of the class names in attr.
// Membership is per token, so "hidden-panel" does not contain "hidden".
func HasClassToken(attr, token string) bool {
	if token == "" {
		return false
	}
	for _, name := range ClassTokens(attr) {
		if name == token {
			return true
		}
	}
	return false
}
