package metadata

import (
	"fmt"
	"strings"
)

// ValidationError rejects a function at load time. The function is not
// registered.
type ValidationError struct {
	Function string
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("function '%s': %s", e.Function, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func validateBindings(function string, bindings []*BindingMetadata) error {
	httpOut := 0
	for _, b := range bindings {
		if b.direction != DirectionIn && strings.EqualFold(b.bindingType, "http") {
			httpOut++
		}
	}
	if httpOut > 1 {
		return &ValidationError{
			Function: function,
			Reason:   fmt.Sprintf("found %d HTTP output bindings; a function can only have one HTTP response binding", httpOut),
		}
	}
	return nil
}

func validateRetry(function string, r *RetryOptions) error {
	if r.MaxRetryCount < -1 {
		return &ValidationError{Function: function, Reason: "retry maxRetryCount must be -1 (unlimited) or greater"}
	}
	switch r.Strategy {
	case RetryFixedDelay:
		if r.DelayInterval <= 0 {
			return &ValidationError{Function: function, Reason: "fixed delay retry requires a positive delayInterval"}
		}
	case RetryExponentialBackoff:
		if r.MinimumInterval < 0 || r.MaximumInterval <= 0 {
			return &ValidationError{Function: function, Reason: "exponential backoff retry requires minimumInterval and maximumInterval"}
		}
		if r.MinimumInterval > r.MaximumInterval {
			return &ValidationError{
				Function: function,
				Reason:   fmt.Sprintf("retry minimumInterval %s exceeds maximumInterval %s", r.MinimumInterval, r.MaximumInterval),
			}
		}
	}
	return nil
}
