package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/xiaot623/gogo/refinery/internal/domain"
)

const healthProbeTimeout = 5 * time.Second

// ListModels returns the models the backend serves.
func (s *Service) ListModels(ctx context.Context) (*domain.ModelsResponse, error) {
	models, err := s.llmClient.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	infos := make([]domain.ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, domain.ModelInfo{Name: m.ID, DisplayName: DisplayName(m.ID)})
	}
	return &domain.ModelsResponse{
		Models:       infos,
		DefaultModel: s.config.DefaultModel,
		Count:        len(infos),
	}, nil
}

// DisplayName turns "llama3.2:latest" into "Llama3.2 Latest".
func DisplayName(model string) string {
	words := strings.Fields(strings.ReplaceAll(model, ":", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Health probes the backend and reports slot usage. An unreachable backend
// degrades the service; it is never an error.
func (s *Service) Health(ctx context.Context) *domain.HealthResponse {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	dep := domain.DependencyStatus{URL: s.config.LLMBaseURL}
	start := time.Now()
	if _, err := s.llmClient.ListModels(probeCtx); err != nil {
		dep.Error = err.Error()
	} else {
		ms := time.Since(start).Milliseconds()
		dep.Connected = true
		dep.ResponseTimeMs = &ms
	}

	status := "healthy"
	if !dep.Connected {
		status = "degraded"
	}
	return &domain.HealthResponse{
		Status:       status,
		Version:      Version,
		Timestamp:    time.Now().UTC(),
		Dependencies: map[string]domain.DependencyStatus{"llm": dep},
		Admission: domain.AdmissionStatus{
			InFlight: s.admission.InFlight(),
			Capacity: s.admission.Capacity(),
		},
	}
}
