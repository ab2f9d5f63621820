package llm

import (
	"strings"
	"time"
)

const (
	// EnvRefineryMode is the environment variable name for mode selection.
	EnvRefineryMode = "REFINERY_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client for the given mode.
// If mode is MOCK, returns a MockClient; otherwise returns a real Client.
func NewLLMClient(mode, baseURL, apiKey string, timeout time.Duration) LLMClient {
	if strings.EqualFold(mode, ModeMock) {
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, timeout)
}
