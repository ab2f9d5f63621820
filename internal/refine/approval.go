// Package refine drives the proposer/critic refinement loop.
package refine

import (
	"regexp"
	"strings"
)

// ApprovalMarker is the phrase a critic uses to accept a candidate.
const ApprovalMarker = "SHIP IT"

// The marker must stand as whole words: "shipment" or "ship items" never match.
var approvalPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])ship\s+it(?:[^\p{L}\p{N}_]|$)`)

// IsApproved reports whether a critic response carries the approval marker.
// It is a heuristic over free text; callers only ever see the boolean.
func IsApproved(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	return approvalPattern.MatchString(normalized)
}
