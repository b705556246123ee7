package extractor

import (
	"context"
	"errors"
	"fmt"

	"assay/internal/types"
)

// Registry errors.
var (
	// ErrNilExtractor is returned when registering a nil extractor.
	ErrNilExtractor = errors.New("extractor is nil")

	// ErrEmptyName is returned when an extractor has no name.
	ErrEmptyName = errors.New("extractor name cannot be empty")

	// ErrUnknownAxis is returned when an extractor declares an axis outside
	// the known assessment dimensions.
	ErrUnknownAxis = errors.New("unknown extractor axis")

	// ErrAlreadyRegistered is returned when registering a duplicate name.
	ErrAlreadyRegistered = errors.New("extractor already registered")
)

// ExtractorError wraps a failure inside one extractor run. It is always
// local: the orchestrator absorbs it into a zero-confidence failure signal
// and the scan continues. A timeout is the same type wrapping
// context.DeadlineExceeded.
type ExtractorError struct {
	Axis types.Axis
	Name string
	Err  error
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("extractor %s (%s): %v", e.Name, e.Axis, e.Err)
}

func (e *ExtractorError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was the per-extractor deadline.
func (e *ExtractorError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// FailureSignal renders a failed extractor run as the zero-confidence marker
// signal the aggregator understands. The error text rides along as the value
// so reports can say why the axis is missing evidence.
func FailureSignal(axis types.Axis, name string, err error) types.Signal {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return types.Signal{
		Axis:       axis,
		Key:        types.KeyExtractorFailed,
		Value:      types.Excerpt(msg),
		Confidence: 0,
		Extractor:  name,
	}
}
