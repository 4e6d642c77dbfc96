package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/ai"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/profile"
	"github.com/spigell/govcon-responder/internal/util"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompts/match.md
var matchSystemPrompt string

const (
	defaultMaxLogLength = 200

	// maxProfileStatements bounds how much of the profile travels with each
	// opportunity prompt.
	maxProfileStatements = 12
)

const matchMessageTemplate = `Company profile:
{{PROFILE_JSON}}

Opportunity listing:
{{OPPORTUNITY_JSON}}

JSON response:`

// Matcher asks the model how well the capability profile covers an
// opportunity's requirements.
type Matcher struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewMatcher(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Matcher {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (m *Matcher) Assess(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity) (*ai.FitAssessment, error) {
	if prof == nil {
		return nil, fmt.Errorf("capability profile is required")
	}
	if opp == nil {
		return nil, fmt.Errorf("opportunity is required")
	}

	subset := prof.Relevant(opp.Requirements, opp.NAICS, maxProfileStatements)
	profileJSON, err := json.MarshalIndent(subset, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}
	oppJSON, err := json.MarshalIndent(opp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal opportunity payload: %w", err)
	}

	message := buildMatchMessage(string(profileJSON), string(oppJSON))

	m.logger.Debug("fit assessment request",
		zap.String("opportunity_id", opp.ID()),
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", util.TruncateForLog(message, m.maxLogLen)),
	)

	raw, err := m.generator.GenerateContent(ctx, matchSystemPrompt, message)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("fit assessment response",
		zap.String("opportunity_id", opp.ID()),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, m.maxLogLen)),
	)

	assessment, err := parseAssessment(raw)
	if err != nil {
		return nil, err
	}
	assessment.Raw = raw

	return assessment, nil
}

func buildMatchMessage(profileJSON, oppJSON string) string {
	message := strings.ReplaceAll(matchMessageTemplate, "{{PROFILE_JSON}}", profileJSON)
	return strings.ReplaceAll(message, "{{OPPORTUNITY_JSON}}", oppJSON)
}

func parseAssessment(raw string) (*ai.FitAssessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse assessment response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("assessment response has no usable score")
	}

	return &ai.FitAssessment{
		Score:     clampScore(score),
		Satisfied: coerceStringSlice(data["satisfied"]),
		Gaps:      coerceGaps(data["gaps"]),
		Rationale: coerceString(data["rationale"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

func coerceGaps(v any) []ai.Gap {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	var gaps []ai.Gap
	for _, item := range items {
		switch val := item.(type) {
		case map[string]any:
			requirement := coerceString(val["requirement"])
			if requirement == "" {
				continue
			}
			gaps = append(gaps, ai.Gap{
				Requirement: requirement,
				Severity:    coerceSeverity(val["severity"]),
			})
		case string:
			if trimmed := strings.TrimSpace(val); trimmed != "" {
				gaps = append(gaps, ai.Gap{Requirement: trimmed, Severity: ai.SeverityModerate})
			}
		}
	}
	return gaps
}

func coerceSeverity(v any) ai.Severity {
	switch strings.ToLower(strings.TrimSpace(coerceString(v))) {
	case string(ai.SeverityCritical):
		return ai.SeverityCritical
	case string(ai.SeverityMinor):
		return ai.SeverityMinor
	default:
		return ai.SeverityModerate
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(coerceString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
