// Package service ties request validation, policy, model checks and admission
// together behind the operations the transports expose.
package service

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/refinery/config"
	"github.com/xiaot623/gogo/refinery/internal/adapter/llm"
	"github.com/xiaot623/gogo/refinery/internal/admission"
	"github.com/xiaot623/gogo/refinery/internal/agent"
	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/refine"
	"github.com/xiaot623/gogo/refinery/policy"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// Logger is the logging surface the service and the layers it builds need.
type Logger interface {
	Debugj(j log.JSON)
	Infoj(j log.JSON)
	Warnj(j log.JSON)
	Errorj(j log.JSON)
}

type nopLogger struct{}

func (nopLogger) Debugj(log.JSON) {}
func (nopLogger) Infoj(log.JSON)  {}
func (nopLogger) Warnj(log.JSON)  {}
func (nopLogger) Errorj(log.JSON) {}

// Service runs refinement requests for the HTTP and CLI surfaces.
type Service struct {
	llmClient    llm.LLMClient
	admission    *admission.Controller
	policyEngine *policy.Engine
	config       *config.Config
	logger       Logger
}

// New wires the writer and reviewer over llmClient into an engine and puts it
// behind an admission controller sized from cfg. policyEngine may be nil.
func New(llmClient llm.LLMClient, cfg *config.Config, policyEngine *policy.Engine, logger Logger) *Service {
	if logger == nil {
		logger = nopLogger{}
	}
	opts := agent.Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	engine := refine.NewEngine(agent.NewWriter(llmClient, opts), agent.NewReviewer(llmClient, opts), logger)
	controller := admission.NewController(engine, admission.Options{
		MaxConcurrent: cfg.MaxConcurrent,
		Timeout:       cfg.GenerationTimeout,
		Logger:        logger,
	})

	return &Service{
		llmClient:    llmClient,
		admission:    controller,
		policyEngine: policyEngine,
		config:       cfg,
		logger:       logger,
	}
}

// NewPolicyEngine loads the configured policy with limits taken from cfg.
func NewPolicyEngine(ctx context.Context, cfg *config.Config) (*policy.Engine, error) {
	engine, err := policy.LoadEngine(ctx, cfg.PolicyFile, policy.Limits{
		MaxInputLength: domain.MaxInputLength,
		MaxTurns:       domain.MaxTurnsLimit,
		BlockedModels:  cfg.BlockedModels,
	})
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return engine, nil
}

// Admission exposes the controller for status reporting.
func (s *Service) Admission() *admission.Controller {
	return s.admission
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}
