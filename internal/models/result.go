package models

// Hit is one retrieved chunk with its provenance and distance from the query.
type Hit struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	SourceDocument string  `json:"source_document"`
	Distance       float64 `json:"distance"`
}
