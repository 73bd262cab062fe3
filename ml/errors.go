package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactNotFound is returned when no pipeline file exists at the configured path.
	ErrArtifactNotFound = errors.New("pipeline artifact not found")
	// ErrArtifactCorrupt is returned when the pipeline file exists but cannot be decoded.
	ErrArtifactCorrupt = errors.New("pipeline artifact unreadable")
	// ErrSchemaMismatch marks records or artifacts whose columns do not match the fitted schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrTrainingData marks datasets that cannot be trained on.
	ErrTrainingData = errors.New("invalid training data")
	// ErrNotFitted is returned when a transform or tree is used before Fit.
	ErrNotFitted = errors.New("model not trained")
)

// SchemaError describes one offending column.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch: column %q: %s", e.Column, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}

func trainingDataError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTrainingData, fmt.Sprintf(format, args...))
}
