package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrProjection marks documents that lack a structurally required field.
	ErrProjection = errors.New("projection failed")

	ErrGroupNameRequired = errors.New("group room name is required")
)

// ProjectionError describes which document and field could not be projected.
type ProjectionError struct {
	Kind   string
	DocID  string
	Field  string
	Reason string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("project %s %q: field %q %s", e.Kind, e.DocID, e.Field, e.Reason)
}

func (e *ProjectionError) Unwrap() error {
	return ErrProjection
}

func missingField(kind, docID, field string) error {
	return &ProjectionError{Kind: kind, DocID: docID, Field: field, Reason: "is missing"}
}

func malformedField(kind, docID, field, reason string) error {
	return &ProjectionError{Kind: kind, DocID: docID, Field: field, Reason: reason}
}
