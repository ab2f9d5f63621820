package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xiaot623/gogo/refinery/internal/domain"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	artifactStyle = lipgloss.NewStyle().Bold(true).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("42")).Padding(0, 1)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

// backendError carries the backend URL so the message can point at it.
type backendError struct {
	err     error
	baseURL string
}

func (e *backendError) Error() string { return e.err.Error() }
func (e *backendError) Unwrap() error { return e.err }

// describeError turns err into a message for the terminal.
func describeError(err error) string {
	baseURL := "the configured backend"
	var be *backendError
	if errors.As(err, &be) && be.baseURL != "" {
		baseURL = be.baseURL
	}

	var modelErr *domain.InvalidModelError
	switch {
	case errors.As(err, &modelErr):
		return fmt.Sprintf("Model not found: %s\nAvailable: %s", modelErr.Model, strings.Join(modelErr.Available, ", "))
	case errors.Is(err, domain.ErrInvalidParameter):
		return "Invalid input: " + err.Error()
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return fmt.Sprintf("Cannot reach the language model backend at %s. Is it running?", baseURL)
	case errors.Is(err, domain.ErrGenerationTimeout), errors.Is(err, domain.ErrUpstreamTimeout):
		return "Generation timed out: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func completionLabel(reason domain.CompletionReason) string {
	switch reason {
	case domain.CompletionApproved:
		return successStyle.Render("approved")
	case domain.CompletionMaxTurnsExhausted:
		return warnStyle.Render("max turns reached")
	default:
		return errorStyle.Render(string(reason))
	}
}

// renderResult formats a finished session for the terminal.
func renderResult(resp *domain.GenerateResponse, verbose bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Final artifact"))
	b.WriteString("\n")
	b.WriteString(artifactStyle.Render(resp.Artifact))
	b.WriteString("\n\n")

	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-8s", label)), value)
	}
	row("Status", completionLabel(resp.CompletionReason))
	row("Turns", fmt.Sprintf("%d", resp.TurnCount))
	row("Model", resp.Model)
	row("Input", resp.Input)
	row("Time", fmt.Sprintf("%.2fs (%.2fs/turn)", resp.TotalDurationSeconds, resp.AverageDurationPerTurn))

	if verbose && len(resp.Turns) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Turn history"))
		b.WriteString("\n")
		for _, turn := range resp.Turns {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("[%d]", turn.TurnNumber)), turn.Artifact)
			if turn.Approved {
				fmt.Fprintf(&b, "    %s\n", successStyle.Render("approved"))
			} else if turn.Critique != nil {
				fmt.Fprintf(&b, "    %s\n", mutedStyle.Render(*turn.Critique))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderModels lists models, marking the default.
func renderModels(resp *domain.ModelsResponse) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Available models (%d)", resp.Count)))
	for _, m := range resp.Models {
		b.WriteString("\n")
		line := fmt.Sprintf("  %s  %s", m.Name, labelStyle.Render(m.DisplayName))
		if m.Name == resp.DefaultModel {
			line += " " + successStyle.Render("(default)")
		}
		b.WriteString(line)
	}
	if resp.Count == 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("  none"))
	}
	return b.String()
}

// formatText is the plain-text file format for --output.
func formatText(resp *domain.GenerateResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Artifact: %s\n", resp.Artifact)
	fmt.Fprintf(&b, "Input: %s\n", resp.Input)
	fmt.Fprintf(&b, "Status: %s\n", resp.CompletionReason)
	fmt.Fprintf(&b, "Turns: %d\n", resp.TurnCount)
	fmt.Fprintf(&b, "Model: %s\n", resp.Model)
	fmt.Fprintf(&b, "Duration: %.2fs\n", resp.TotalDurationSeconds)
	for _, turn := range resp.Turns {
		fmt.Fprintf(&b, "\nTurn %d: %s\n", turn.TurnNumber, turn.Artifact)
		if turn.Critique != nil {
			fmt.Fprintf(&b, "Critique: %s\n", *turn.Critique)
		} else if turn.Approved {
			b.WriteString("Approved\n")
		}
	}
	return b.String()
}

// writeOutput saves resp as JSON for .json paths and as text otherwise.
func writeOutput(path string, resp *domain.GenerateResponse) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var err error
		data, err = json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(formatText(resp))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
