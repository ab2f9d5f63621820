package domain

import "time"

// Turn is one proposer/critic exchange.
type Turn struct {
	TurnNumber int       `json:"turn_number"`
	Artifact   string    `json:"artifact"`
	Critique   *string   `json:"critique"`
	Approved   bool      `json:"approved"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is one complete run of the refinement loop. It is owned by the
// engine invocation that created it and must not be mutated after Complete.
type Session struct {
	Input            string           `json:"input"`
	Model            string           `json:"model"`
	MaxTurns         int              `json:"max_turns"`
	Turns            []Turn           `json:"turns"`
	FinalArtifact    *string          `json:"final_artifact"`
	CompletionReason CompletionReason `json:"completion_reason,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`

	// Err is the error that ended the session when CompletionReason is error.
	Err error `json:"-"`
}

// NewSession starts a session for the given input.
func NewSession(input, model string, maxTurns int) *Session {
	return &Session{
		Input:     input,
		Model:     model,
		MaxTurns:  maxTurns,
		Turns:     make([]Turn, 0, maxTurns),
		StartedAt: time.Now(),
	}
}

// AddTurn appends the next turn. A nil critique is recorded for approved turns.
func (s *Session) AddTurn(artifact string, critique string, approved bool) Turn {
	turn := Turn{
		TurnNumber: len(s.Turns) + 1,
		Artifact:   artifact,
		Approved:   approved,
		CreatedAt:  time.Now(),
	}
	if !approved {
		turn.Critique = &critique
	}
	s.Turns = append(s.Turns, turn)
	return turn
}

// LastTurn returns the most recent turn, or nil.
func (s *Session) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// Complete finalizes the session. The final artifact is always the last
// recorded turn's artifact.
func (s *Session) Complete(reason CompletionReason) {
	now := time.Now()
	s.CompletionReason = reason
	s.CompletedAt = &now
	if last := s.LastTurn(); last != nil {
		artifact := last.Artifact
		s.FinalArtifact = &artifact
	}
}

// Completed reports whether Complete has been called.
func (s *Session) Completed() bool {
	return s.CompletedAt != nil
}

// Duration is the wall time between start and completion (or now).
func (s *Session) Duration() time.Duration {
	if s.CompletedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// AverageTurnDuration is Duration divided by the number of turns.
func (s *Session) AverageTurnDuration() time.Duration {
	if len(s.Turns) == 0 {
		return 0
	}
	return s.Duration() / time.Duration(len(s.Turns))
}

// QueuedAcknowledgment is returned instead of a Session when every admission
// slot is busy. Nothing is queued for later execution; the caller retries.
type QueuedAcknowledgment struct {
	RequestID            string `json:"request_id"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
	Status               string `json:"status"`
}
