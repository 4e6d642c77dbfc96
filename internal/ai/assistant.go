// Package ai defines the contracts the model backends implement: semantic
// fit assessment and application section drafting.
package ai

import (
	"context"

	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/profile"
)

// Severity ranks how badly a gap hurts the company's chances.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Gap is one requirement the capability profile does not clearly cover.
type Gap struct {
	Requirement string   `json:"requirement"`
	Severity    Severity `json:"severity"`
}

// FitAssessment is the model's judgment of how well the profile covers an
// opportunity's requirements. Score is clamped to [0, 1].
type FitAssessment struct {
	Score     float64  `json:"score"`
	Satisfied []string `json:"satisfied"`
	Gaps      []Gap    `json:"gaps"`
	Rationale string   `json:"rationale"`
	Raw       string   `json:"-"`
}

// Matcher produces semantic fit assessments.
type Matcher interface {
	Assess(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity) (*FitAssessment, error)
}

// SectionRequest carries the grounding context for drafting one application
// section. Profile is expected to be the relevant subset, not the full
// profile, to bound prompt size.
type SectionRequest struct {
	Section     string
	Opportunity *opportunity.Opportunity
	Profile     *profile.CapabilityProfile
	Satisfied   []string
}

// Composer drafts application sections.
type Composer interface {
	Compose(ctx context.Context, req *SectionRequest) (string, error)
}
