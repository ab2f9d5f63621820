// Package domain defines the core domain models for the refinery.
package domain

// CompletionReason records why a session stopped.
type CompletionReason string

const (
	CompletionApproved          CompletionReason = "approved"
	CompletionMaxTurnsExhausted CompletionReason = "max_turns_exhausted"
	CompletionError             CompletionReason = "error"
)

// AdmissionState is the lifecycle state of one submitted request.
type AdmissionState string

const (
	AdmissionAdmitted AdmissionState = "ADMITTED"
	AdmissionRunning  AdmissionState = "RUNNING"
	AdmissionOverflow AdmissionState = "OVERFLOW"
	AdmissionDone     AdmissionState = "DONE"
	AdmissionError    AdmissionState = "ERROR"
	AdmissionTimedOut AdmissionState = "TIMED_OUT"
)

// AgentRole names one side of the refinement exchange.
type AgentRole string

const (
	RoleProposer AgentRole = "proposer"
	RoleCritic   AgentRole = "critic"
)

// QueuedStatus is the constant status carried by a queued acknowledgment.
const QueuedStatus = "queued"

// Bounds shared by validation, the engine and the HTTP layer.
const (
	MaxInputLength    = 500
	MaxArtifactLength = 500
	MaxCritiqueLength = 1000
	MinTurns          = 1
	MaxTurnsLimit     = 10
	DefaultMaxTurns   = 5
)
