package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid settings; fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrDocumentParse marks a source document that could not be read or parsed.
	ErrDocumentParse = errors.New("document parse error")
	// ErrEmbeddingBackend marks a failed, timed out or malformed embedding call.
	ErrEmbeddingBackend = errors.New("embedding backend error")
	// ErrDimensionMismatch marks a vector whose length differs from its collection.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrGenerationBackend marks a failed text-generation call.
	ErrGenerationBackend = errors.New("generation backend error")
	// ErrNotFound is returned by point lookups that miss.
	ErrNotFound = errors.New("not found")
)

// DocumentParseError reports which document failed to parse.
type DocumentParseError struct {
	DocumentID string
	Err        error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("parse document %s: %v", e.DocumentID, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// Is reports ErrDocumentParse so callers can match on the sentinel.
func (e *DocumentParseError) Is(target error) bool { return target == ErrDocumentParse }

// DimensionMismatchError reports the collection and the two dimensions involved.
type DimensionMismatchError struct {
	Collection string
	Want       int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%v: collection %q has dimension %d, got %d", ErrDimensionMismatch, e.Collection, e.Want, e.Got)
}

// Is reports ErrDimensionMismatch so callers can match on the sentinel.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }
