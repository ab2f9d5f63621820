package refine

import (
	"fmt"
	"strings"
)

// ProposerPrompt builds the proposer input for one turn. The first turn is the
// task alone; later turns carry the previous attempt and its critique verbatim.
func ProposerPrompt(input, previous, feedback string) string {
	if previous == "" && feedback == "" {
		return input
	}
	var b strings.Builder
	b.WriteString(input)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Previous attempt: %s\n", previous)
	fmt.Fprintf(&b, "Feedback: %s\n\n", feedback)
	b.WriteString("Revise the previous attempt given this feedback. Output only the revised text.")
	return b.String()
}

// CriticPrompt frames a candidate for review.
func CriticPrompt(input, artifact string) string {
	return fmt.Sprintf(
		"Review this candidate for '%s':\n\n%s\n\nProvide feedback, or approve with '%s!'",
		input, artifact, ApprovalMarker,
	)
}
