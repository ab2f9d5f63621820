package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/policy"
)

// GenerateResult holds either a completed response or a queued acknowledgment.
type GenerateResult struct {
	RequestID string
	Response  *domain.GenerateResponse
	Queued    *domain.QueuedResponse
	Session   *domain.Session
}

// Generate validates req and runs one refinement session through admission.
// A session that ends in error is reported through the returned error.
func (s *Service) Generate(ctx context.Context, requestID string, req domain.GenerateRequest) (*GenerateResult, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if fields := req.Validate(); len(fields) > 0 {
		return nil, &domain.ValidationError{Fields: fields}
	}

	input := strings.TrimSpace(req.Input)
	model := strings.TrimSpace(req.Model)
	requested := model != ""
	if !requested {
		model = s.config.DefaultModel
	}
	maxTurns := s.config.DefaultMaxTurns
	if req.MaxTurns != nil {
		maxTurns = *req.MaxTurns
	}

	if err := s.checkPolicy(ctx, input, model, maxTurns); err != nil {
		return nil, err
	}
	if requested {
		if err := s.checkModel(ctx, model); err != nil {
			return nil, err
		}
	}

	outcome, err := s.admission.Submit(ctx, requestID, input, model, maxTurns)
	if err != nil {
		s.logger.Errorj(log.JSON{
			"event":      "generate_failed",
			"request_id": requestID,
			"error_code": domain.ErrorCode(err),
			"error":      err.Error(),
		})
		return nil, err
	}

	if outcome.Queued != nil {
		return &GenerateResult{
			RequestID: requestID,
			Queued: &domain.QueuedResponse{
				RequestID:            outcome.Queued.RequestID,
				Status:               outcome.Queued.Status,
				EstimatedWaitSeconds: outcome.Queued.EstimatedWaitSeconds,
				Message:              outcome.Message,
			},
		}, nil
	}

	s.logger.Infoj(log.JSON{
		"event":             "generate_completed",
		"request_id":        requestID,
		"completion_reason": outcome.Session.CompletionReason,
		"turns":             len(outcome.Session.Turns),
	})
	return &GenerateResult{
		RequestID: requestID,
		Response:  NewGenerateResponse(outcome.Session, requestID, req.Verbose),
		Session:   outcome.Session,
	}, nil
}

func (s *Service) checkPolicy(ctx context.Context, input, model string, maxTurns int) error {
	if s.policyEngine == nil {
		return nil
	}
	decision, err := s.policyEngine.Evaluate(ctx, policy.Input{
		Input:       input,
		InputLength: utf8.RuneCountInString(input),
		Model:       model,
		MaxTurns:    maxTurns,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	if decision.Allow {
		return nil
	}
	reason := decision.Reason
	if reason == "" {
		reason = "request denied by policy"
	}
	return fmt.Errorf("%s: %w", reason, domain.ErrInvalidParameter)
}

// checkModel rejects a model the backend does not list. A failed listing is
// not fatal; the run itself surfaces the backend error.
func (s *Service) checkModel(ctx context.Context, model string) error {
	models, err := s.llmClient.ListModels(ctx)
	if err != nil {
		s.logger.Warnj(log.JSON{
			"event": "model_check_skipped",
			"model": model,
			"error": err.Error(),
		})
		return nil
	}

	available := make([]string, 0, len(models))
	for _, m := range models {
		if m.ID == model {
			return nil
		}
		available = append(available, m.ID)
	}
	return &domain.InvalidModelError{Model: model, Available: available}
}

// NewGenerateResponse renders a finished session.
func NewGenerateResponse(session *domain.Session, requestID string, verbose bool) *domain.GenerateResponse {
	resp := &domain.GenerateResponse{
		Input:                  session.Input,
		CompletionReason:       session.CompletionReason,
		TurnCount:              len(session.Turns),
		Model:                  session.Model,
		TotalDurationSeconds:   round2(session.Duration().Seconds()),
		AverageDurationPerTurn: round2(session.AverageTurnDuration().Seconds()),
		CreatedAt:              session.StartedAt,
		RequestID:              requestID,
	}
	if session.FinalArtifact != nil {
		resp.Artifact = *session.FinalArtifact
	}
	if session.CompletedAt != nil {
		resp.CreatedAt = *session.CompletedAt
	}
	if verbose {
		resp.Turns = make([]domain.TurnDetail, 0, len(session.Turns))
		for _, turn := range session.Turns {
			resp.Turns = append(resp.Turns, domain.TurnDetail{
				TurnNumber: turn.TurnNumber,
				Artifact:   turn.Artifact,
				Critique:   turn.Critique,
				Approved:   turn.Approved,
				Timestamp:  turn.CreatedAt,
			})
		}
	}
	return resp
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsClientError reports whether err was caused by the request rather than
// the service or its backend.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidParameter) || errors.Is(err, domain.ErrInvalidModel)
}
