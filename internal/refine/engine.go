package refine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/gommon/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/refinery/internal/domain"
	"github.com/xiaot623/gogo/refinery/internal/observability"
)

// Proposer generates a candidate artifact from a prompt.
type Proposer interface {
	Propose(ctx context.Context, model, prompt string) (string, error)
}

// Critic evaluates a candidate and returns its raw verdict.
type Critic interface {
	Critique(ctx context.Context, model, prompt string) (string, error)
}

// ProposerFunc adapts a function to Proposer.
type ProposerFunc func(ctx context.Context, model, prompt string) (string, error)

// Propose calls f.
func (f ProposerFunc) Propose(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

// CriticFunc adapts a function to Critic.
type CriticFunc func(ctx context.Context, model, prompt string) (string, error)

// Critique calls f.
func (f CriticFunc) Critique(ctx context.Context, model, prompt string) (string, error) {
	return f(ctx, model, prompt)
}

// Logger is the logging surface the engine needs.
type Logger interface {
	Debugj(j log.JSON)
	Infoj(j log.JSON)
}

type nopLogger struct{}

func (nopLogger) Debugj(log.JSON) {}
func (nopLogger) Infoj(log.JSON)  {}

var tracer = otel.Tracer("refinery/refine")

// Engine runs one refinement session per call. It holds no per-session state,
// so a single Engine serves concurrent sessions.
type Engine struct {
	proposer Proposer
	critic   Critic
	logger   Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(proposer Proposer, critic Critic, logger Logger) *Engine {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Engine{
		proposer: proposer,
		critic:   critic,
		logger:   logger,
	}
}

// Run drives the proposer/critic loop until approval or until maxTurns turns
// have been spent.
//
// Invalid parameters return (nil, error) before any external call. A failing
// external call ends the session with CompletionError; the finalized session
// is returned together with the error.
func (e *Engine) Run(ctx context.Context, input, model string, maxTurns int) (*domain.Session, error) {
	input = strings.TrimSpace(input)
	if err := validateRun(input, model, maxTurns); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "refine.session", trace.WithAttributes(
		attribute.String("refinery.model", model),
		attribute.Int("refinery.max_turns", maxTurns),
	))
	defer span.End()

	session := domain.NewSession(input, model, maxTurns)
	var previous, feedback string

	for n := 1; n <= maxTurns; n++ {
		turn, err := e.runTurn(ctx, session, n, previous, feedback)
		if err != nil {
			return e.fail(span, session, err)
		}

		if turn.Approved {
			session.Complete(domain.CompletionApproved)
			break
		}
		if n == maxTurns {
			session.Complete(domain.CompletionMaxTurnsExhausted)
			break
		}
		previous, feedback = turn.Artifact, *turn.Critique
	}

	e.finish(span, session)
	return session, nil
}

func (e *Engine) runTurn(ctx context.Context, session *domain.Session, n int, previous, feedback string) (domain.Turn, error) {
	ctx, span := tracer.Start(ctx, "refine.turn", trace.WithAttributes(attribute.Int("refinery.turn", n)))
	defer span.End()
	start := time.Now()

	raw, err := e.proposer.Propose(ctx, session.Model, ProposerPrompt(session.Input, previous, feedback))
	if err != nil {
		span.RecordError(err)
		return domain.Turn{}, fmt.Errorf("turn %d: %w", n, err)
	}
	artifact := strings.TrimSpace(raw)
	if err := checkBounds("artifact", artifact, domain.MaxArtifactLength); err != nil {
		return domain.Turn{}, fmt.Errorf("turn %d: %w", n, err)
	}

	verdict, err := e.critic.Critique(ctx, session.Model, CriticPrompt(session.Input, artifact))
	if err != nil {
		span.RecordError(err)
		return domain.Turn{}, fmt.Errorf("turn %d: %w", n, err)
	}
	approved := IsApproved(verdict)
	critique := strings.TrimSpace(verdict)
	if !approved && utf8.RuneCountInString(critique) > domain.MaxCritiqueLength {
		return domain.Turn{}, fmt.Errorf("turn %d: critique is %d characters, limit %d: %w",
			n, utf8.RuneCountInString(critique), domain.MaxCritiqueLength, domain.ErrArtifactBounds)
	}

	turn := session.AddTurn(artifact, critique, approved)
	durationMS := int(time.Since(start).Milliseconds())
	observability.RecordTurn(durationMS)
	span.SetAttributes(attribute.Bool("refinery.approved", approved))

	e.logger.Debugj(log.JSON{
		"event":       "turn_completed",
		"turn":        turn.TurnNumber,
		"approved":    approved,
		"duration_ms": durationMS,
	})
	return turn, nil
}

func (e *Engine) fail(span trace.Span, session *domain.Session, err error) (*domain.Session, error) {
	session.Err = err
	session.Complete(domain.CompletionError)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.finish(span, session)
	return session, err
}

func (e *Engine) finish(span trace.Span, session *domain.Session) {
	durationMS := int(session.Duration().Milliseconds())
	observability.RecordSession(string(session.CompletionReason), len(session.Turns), durationMS)
	span.SetAttributes(
		attribute.String("refinery.completion_reason", string(session.CompletionReason)),
		attribute.Int("refinery.turns", len(session.Turns)),
	)
	e.logger.Infoj(log.JSON{
		"event":             "session_completed",
		"completion_reason": session.CompletionReason,
		"turns":             len(session.Turns),
		"duration_ms":       durationMS,
		"model":             session.Model,
	})
}

func validateRun(input, model string, maxTurns int) error {
	if input == "" {
		return fmt.Errorf("input cannot be empty: %w", domain.ErrInvalidParameter)
	}
	if n := utf8.RuneCountInString(input); n > domain.MaxInputLength {
		return fmt.Errorf("input is %d characters, limit %d: %w", n, domain.MaxInputLength, domain.ErrInvalidParameter)
	}
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model cannot be empty: %w", domain.ErrInvalidParameter)
	}
	if maxTurns < domain.MinTurns || maxTurns > domain.MaxTurnsLimit {
		return fmt.Errorf("max_turns must be between %d and %d, got %d: %w",
			domain.MinTurns, domain.MaxTurnsLimit, maxTurns, domain.ErrInvalidParameter)
	}
	return nil
}

func checkBounds(field, text string, limit int) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return fmt.Errorf("%s is empty: %w", field, domain.ErrArtifactBounds)
	}
	if n > limit {
		return fmt.Errorf("%s is %d characters, limit %d: %w", field, n, limit, domain.ErrArtifactBounds)
	}
	return nil
}
