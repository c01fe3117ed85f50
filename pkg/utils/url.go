package utils

import "strings"

// OpenAIBaseURL returns the OpenAI-compatible API root for an Ollama base URL,
// appending "/v1" unless it is already present.
func OpenAIBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}
