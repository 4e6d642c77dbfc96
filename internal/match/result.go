// Package match scores how well the company capability profile fits an
// opportunity. Scoring is two-phase: a deterministic pre-filter that caps the
// score for hard mismatches, then an LLM-backed semantic comparison.
package match

import (
	"github.com/spigell/govcon-responder/internal/ai"
)

// MatchResult is the scored fit between the capability profile and one
// opportunity.
type MatchResult struct {
	OpportunityID string   `json:"opportunity_id"`
	Score         float64  `json:"score"`
	Satisfied     []string `json:"satisfied,omitempty"`
	Gaps          []ai.Gap `json:"gaps,omitempty"`
	Rationale     string   `json:"rationale,omitempty"`

	// Degraded marks a result produced without successful semantic scoring.
	// Degraded results are never auto-submitted.
	Degraded bool `json:"degraded,omitempty"`
}

// CriticalGaps returns the gaps assessed as critical.
func (r *MatchResult) CriticalGaps() []ai.Gap {
	var out []ai.Gap
	for _, gap := range r.Gaps {
		if gap.Severity == ai.SeverityCritical {
			out = append(out, gap)
		}
	}
	return out
}
