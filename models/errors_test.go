package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestIngestionErrorKinds(t *testing.T) {
	err := NewIngestionError(ErrEmptyDocument)

	if !errors.Is(err, ErrIngestionFailed) {
		t.Errorf("ingestion error must match ErrIngestionFailed")
	}
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("underlying ErrEmptyDocument must survive the wrap")
	}
	if IsRetryable(err) {
		t.Errorf("an empty document is terminal, not retryable")
	}

	// A cause-less wrap still carries the kind.
	bare := &IngestionError{Page: -1}
	if !errors.Is(bare, ErrIngestionFailed) {
		t.Errorf("cause-less ingestion error must still match ErrIngestionFailed")
	}
}

func TestPageIngestionErrorMessage(t *testing.T) {
	err := NewPageIngestionError(4, errors.New("broken xref"))
	want := "ingestion failed at page 4: broken xref"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestIndexErrorRetryable(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &IndexError{Collection: "c1", Op: "search", Err: cause}

	if !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("index error must match ErrIndexUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Errorf("underlying store error must survive the wrap")
	}
	if !IsRetryable(err) {
		t.Errorf("index outages must be retryable")
	}
}

func TestPageExtractionErrorUnwrap(t *testing.T) {
	cause := errors.New("rasterize failed")
	err := &PageExtractionError{Page: 2, Err: cause}

	if !errors.Is(err, cause) {
		t.Errorf("page error must unwrap to its cause")
	}
	if errors.Is(err, ErrIngestionFailed) {
		t.Errorf("a single-page failure is not a whole-document failure")
	}
}
