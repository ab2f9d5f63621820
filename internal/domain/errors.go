package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidParameter marks malformed or out-of-range request fields.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidModel marks a model the backend does not serve.
	ErrInvalidModel = errors.New("invalid model")
	// ErrUpstreamUnavailable marks a backend that cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamTimeout marks a single backend call that took too long.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrGenerationTimeout marks a request whose overall deadline elapsed.
	ErrGenerationTimeout = errors.New("generation timeout")
	// ErrArtifactBounds marks generated text that violates a length bound.
	ErrArtifactBounds = errors.New("generated text out of bounds")
)

// InvalidModelError carries the models that could have been used instead.
type InvalidModelError struct {
	Model     string
	Available []string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("model '%s' not found. Available models: %s", e.Model, strings.Join(e.Available, ", "))
}

func (e *InvalidModelError) Is(target error) bool {
	return target == ErrInvalidModel
}

// ErrorCode maps an error onto the stable code reported to callers.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_request"
	case errors.Is(err, ErrInvalidModel):
		return "invalid_model"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "service_unavailable"
	case errors.Is(err, ErrGenerationTimeout), errors.Is(err, ErrUpstreamTimeout):
		return "generation_timeout"
	default:
		return "internal_error"
	}
}

// ValidationError carries every rejected request field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParameter
}
