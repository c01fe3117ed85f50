package models

import (
	"encoding/json"
	"strings"
)

// QueryKind tells how a query string reached the retriever.
type QueryKind int

const (
	// RawQuery is free text used as-is.
	RawQuery QueryKind = iota
	// WrappedQuery is a JSON object carrying the text in its "query" field.
	WrappedQuery
)

func (k QueryKind) String() string {
	if k == WrappedQuery {
		return "wrapped"
	}
	return "raw"
}

// QueryInput is a decoded query. Text is empty when a wrapped query had a
// non-string "query" field.
type QueryInput struct {
	Kind QueryKind
	Text string
}

// ParseQueryInput decodes raw. Strings starting with '{' are tried as JSON
// objects; anything that does not decode, or lacks a "query" field, is kept
// as a raw query.
func ParseQueryInput(raw string) QueryInput {
	if !strings.HasPrefix(raw, "{") {
		return QueryInput{Kind: RawQuery, Text: raw}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return QueryInput{Kind: RawQuery, Text: raw}
	}
	field, ok := obj["query"]
	if !ok {
		return QueryInput{Kind: RawQuery, Text: raw}
	}
	var text string
	if err := json.Unmarshal(field, &text); err != nil {
		return QueryInput{Kind: WrappedQuery}
	}
	return QueryInput{Kind: WrappedQuery, Text: text}
}

// Resolve returns the query text and whether it is usable (non-blank).
func (q QueryInput) Resolve() (string, bool) {
	text := strings.TrimSpace(q.Text)
	return text, text != ""
}
