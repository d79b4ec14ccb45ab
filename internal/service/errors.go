package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

// ValidationError reports a missing or out-of-range input field.
// Handlers map it to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ErrConsolidationFallback is returned when the model output could not be
// used for a memory update. The previous memory is left untouched.
var ErrConsolidationFallback = errors.New("memory consolidation fell back to default")

func requireField(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

func requireRange(field string, v, lo, hi float64) error {
	if !models.InRange(v, lo, hi) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %g and %g", lo, hi)}
	}
	return nil
}

func observe(mc *metrics.Collector, op string, start time.Time, err error) {
	if mc != nil {
		mc.RecordOutcome(op, time.Since(start), err)
	}
}

func incr(mc *metrics.Collector, counter string) {
	if mc != nil {
		mc.Incr(counter)
	}
}
