package models

import (
	"errors"
	"fmt"
)

// Pipeline failure kinds. Callers branch on these with errors.Is instead
// of inspecting message text, so retryable conditions (IndexUnavailable)
// are distinguishable from terminal ones (IngestionFailed).
var (
	ErrIngestionFailed  = errors.New("ingestion failed")
	ErrEmptyDocument    = errors.New("document contains no usable text")
	ErrIndexUnavailable = errors.New("vector index unavailable")
	ErrAnswerGeneration = errors.New("answer generation failed")
	ErrSessionNotFound  = errors.New("session not found")
)

// PageExtractionError reports a single page that failed both native
// extraction and OCR. It is recorded as a gap; the pipeline continues.
type PageExtractionError struct {
	Page int
	Err  error
}

func (e *PageExtractionError) Error() string {
	return fmt.Sprintf("page %d: extraction failed: %v", e.Page, e.Err)
}

func (e *PageExtractionError) Unwrap() error { return e.Err }

// IngestionError wraps a whole-document failure. Page is -1 when the
// failure is not attributable to a specific page.
type IngestionError struct {
	Page int
	Err  error
}

func (e *IngestionError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("ingestion failed at page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("ingestion failed: %v", e.Err)
}

// Unwrap exposes both the IngestionFailed kind and the underlying
// cause, so errors.Is sees ErrEmptyDocument through the wrapper.
func (e *IngestionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIngestionFailed}
	}
	return []error{ErrIngestionFailed, e.Err}
}

// NewIngestionError builds a whole-document ingestion failure.
func NewIngestionError(err error) *IngestionError {
	return &IngestionError{Page: -1, Err: err}
}

// NewPageIngestionError builds an ingestion failure pinned to a page.
func NewPageIngestionError(page int, err error) *IngestionError {
	return &IngestionError{Page: page, Err: err}
}

// IndexError wraps a vector store failure so callers can retry with
// backoff. The operation either fully succeeded or fully failed; partial
// results are never returned alongside an IndexError.
type IndexError struct {
	Collection string
	Op         string
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s on %q: %v", e.Op, e.Collection, e.Err)
}

func (e *IndexError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIndexUnavailable}
	}
	return []error{ErrIndexUnavailable, e.Err}
}

// IsRetryable reports whether a pipeline failure may succeed if tried
// again. Index outages are retryable; a document with no text is not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable)
}
