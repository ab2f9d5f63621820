package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// GenerateRequest is the body of POST /api/v1/generate.
type GenerateRequest struct {
	Input    string `json:"input"`
	Model    string `json:"model,omitempty"`
	MaxTurns *int   `json:"max_turns,omitempty"`
	Verbose  bool   `json:"verbose,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate checks field bounds. It does not consult the backend.
func (r *GenerateRequest) Validate() []FieldError {
	var errs []FieldError
	input := strings.TrimSpace(r.Input)
	if input == "" {
		errs = append(errs, FieldError{Field: "input", Message: "input is required"})
	} else if utf8.RuneCountInString(input) > MaxInputLength {
		errs = append(errs, FieldError{Field: "input", Message: fmt.Sprintf("input must be at most %d characters", MaxInputLength)})
	}
	if r.MaxTurns != nil && (*r.MaxTurns < MinTurns || *r.MaxTurns > MaxTurnsLimit) {
		errs = append(errs, FieldError{Field: "max_turns", Message: fmt.Sprintf("max_turns must be between %d and %d", MinTurns, MaxTurnsLimit)})
	}
	return errs
}

// TurnDetail is a Turn as reported in verbose responses.
type TurnDetail struct {
	TurnNumber int       `json:"turn_number"`
	Artifact   string    `json:"artifact"`
	Critique   *string   `json:"critique"`
	Approved   bool      `json:"approved"`
	Timestamp  time.Time `json:"timestamp"`
}

// GenerateResponse is returned when a session ran to completion.
type GenerateResponse struct {
	Artifact               string           `json:"artifact"`
	Input                  string           `json:"input"`
	CompletionReason       CompletionReason `json:"completion_reason"`
	TurnCount              int              `json:"turn_count"`
	Model                  string           `json:"model"`
	TotalDurationSeconds   float64          `json:"total_duration_seconds"`
	AverageDurationPerTurn float64          `json:"average_duration_per_turn"`
	Turns                  []TurnDetail     `json:"turns,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	RequestID              string           `json:"request_id"`
}

// QueuedResponse is returned when admission was deferred.
type QueuedResponse struct {
	RequestID            string `json:"request_id"`
	Status               string `json:"status"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
	Message              string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error           string       `json:"error"`
	Message         string       `json:"message"`
	RequestID       string       `json:"request_id,omitempty"`
	Fields          []FieldError `json:"fields,omitempty"`
	AvailableModels []string     `json:"available_models,omitempty"`
}

// ModelInfo describes one backend model.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// ModelsResponse is returned by GET /api/v1/models.
type ModelsResponse struct {
	Models       []ModelInfo `json:"models"`
	DefaultModel string      `json:"default_model"`
	Count        int         `json:"count"`
}

// DependencyStatus is the health of one dependency.
type DependencyStatus struct {
	Connected      bool   `json:"connected"`
	URL            string `json:"url"`
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`
	Error          string `json:"error,omitempty"`
}

// AdmissionStatus is a snapshot of slot usage.
type AdmissionStatus struct {
	InFlight int `json:"in_flight"`
	Capacity int `json:"capacity"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status       string                      `json:"status"` // healthy or degraded
	Version      string                      `json:"version"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Admission    AdmissionStatus             `json:"admission"`
}

// RootResponse is returned by GET /.
type RootResponse struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Routes      map[string]string `json:"routes"`
}
