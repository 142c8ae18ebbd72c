package churn

import (
	"errors"
	"fmt"
)

// ErrInvalidProbability is returned when a model scores a record as NaN.
var ErrInvalidProbability = errors.New("model returned an invalid probability")

// LoadError reports a model or column artifact that is missing or unreadable.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a feature column list that is empty, malformed
// or inconsistent with the model.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Reason
}
