package indexer

import "strings"

// Preprocess collapses runs of whitespace to single spaces and trims the ends.
// It is used for log samples and blank-text detection; chunks keep the raw text.
func Preprocess(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
