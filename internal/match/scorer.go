package match

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/ai"
	"github.com/spigell/govcon-responder/internal/opportunity"
	"github.com/spigell/govcon-responder/internal/profile"
	"github.com/spigell/govcon-responder/internal/util"
)

const (
	// naicsMismatchCap caps the final score when the profile and listing
	// share no NAICS code. A listing without codes counts as a mismatch.
	naicsMismatchCap = 0.1

	// leadTimeCap caps the final score when the due date leaves less than
	// the minimum preparation lead time.
	leadTimeCap = 0.2

	defaultMinLead     = 14 * 24 * time.Hour
	defaultMaxAttempts = 2
)

// backoff is stubbed in tests.
var backoff = func(attempt int) time.Duration {
	return time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
}

// Config tunes the scorer.
type Config struct {
	// MinLead is the minimum preparation time required before a due date.
	MinLead time.Duration
	// MaxAttempts is the total number of semantic scoring attempts before
	// falling back to the deterministic score.
	MaxAttempts int
}

// Scorer produces MatchResults. The semantic phase is retried with backoff;
// on exhaustion the deterministic keyword score is used and the result is
// flagged degraded.
type Scorer struct {
	matcher     ai.Matcher
	minLead     time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewScorer(matcher ai.Matcher, cfg Config, logger *zap.Logger) *Scorer {
	minLead := cfg.MinLead
	if minLead <= 0 {
		minLead = defaultMinLead
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		matcher:     matcher,
		minLead:     minLead,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Score scores one opportunity against the profile. The final score is
// min(pre-filter cap, semantic score) when a cap applies, the semantic score
// otherwise. Semantic failure after all attempts yields a degraded result,
// not an error; only cancellation and bad inputs are errors.
func (s *Scorer) Score(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity) (*MatchResult, error) {
	if prof == nil {
		return nil, fmt.Errorf("capability profile is required")
	}
	if opp == nil {
		return nil, fmt.Errorf("opportunity is required")
	}

	result := &MatchResult{OpportunityID: opp.ID()}
	ceiling, capGaps, capped := s.prefilter(prof, opp)
	result.Gaps = capGaps

	assessment, err := s.assess(ctx, prof, opp)
	switch {
	case err == nil:
		result.Score = assessment.Score
		result.Satisfied = assessment.Satisfied
		result.Gaps = append(result.Gaps, assessment.Gaps...)
		result.Rationale = assessment.Rationale
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.logger.Warn("semantic scoring degraded",
			zap.String("opportunity_id", opp.ID()),
			zap.Error(err),
		)
		result.Score = fallbackScore(prof, opp)
		result.Rationale = "deterministic keyword score; semantic comparison unavailable"
		result.Degraded = true
	}

	if capped {
		result.Score = math.Min(ceiling, result.Score)
	}

	s.logger.Debug("opportunity scored",
		zap.String("opportunity_id", opp.ID()),
		zap.Float64("score", result.Score),
		zap.Bool("degraded", result.Degraded),
	)

	return result, nil
}

// prefilter applies the deterministic checks. When both trip, the lower cap
// wins and both gaps are reported.
func (s *Scorer) prefilter(prof *profile.CapabilityProfile, opp *opportunity.Opportunity) (float64, []ai.Gap, bool) {
	ceiling := math.MaxFloat64
	var gaps []ai.Gap

	if !naicsIntersect(prof, opp) {
		ceiling = math.Min(ceiling, naicsMismatchCap)
		gaps = append(gaps, ai.Gap{Requirement: "NAICS mismatch", Severity: ai.SeverityCritical})
	}

	if opp.DueDate.Before(s.now().Add(s.minLead)) {
		ceiling = math.Min(ceiling, leadTimeCap)
		gaps = append(gaps, ai.Gap{Requirement: "insufficient lead time", Severity: ai.SeverityCritical})
	}

	return ceiling, gaps, len(gaps) > 0
}

func (s *Scorer) assess(ctx context.Context, prof *profile.CapabilityProfile, opp *opportunity.Opportunity) (*ai.FitAssessment, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		assessment, err := s.matcher.Assess(ctx, prof, opp)
		if err == nil {
			return assessment, nil
		}
		lastErr = err

		if attempt < s.maxAttempts {
			delay := backoff(attempt)
			s.logger.Warn("semantic scoring attempt failed",
				zap.String("opportunity_id", opp.ID()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if werr := util.WaitFor(ctx, delay); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, lastErr
}

func naicsIntersect(prof *profile.CapabilityProfile, opp *opportunity.Opportunity) bool {
	for _, code := range opp.NAICS {
		if prof.HasNAICS(code) {
			return true
		}
	}
	return false
}

// fallbackScore is the deterministic relevance signal: the share of
// requirement terms covered by the profile's capability and past performance
// text.
func fallbackScore(prof *profile.CapabilityProfile, opp *opportunity.Opportunity) float64 {
	reqTerms := profile.Tokenize(opp.Requirements)
	if len(reqTerms) == 0 {
		return 0
	}

	profTerms := make(map[string]bool)
	for _, capability := range prof.Capabilities {
		for term := range profile.Tokenize(capability.Text) {
			profTerms[term] = true
		}
	}
	for _, pp := range prof.PastPerformance {
		for term := range profile.Tokenize(pp.Scope + " " + pp.Outcome) {
			profTerms[term] = true
		}
	}

	matched := 0
	for term := range reqTerms {
		if profTerms[term] {
			matched++
		}
	}

	return float64(matched) / float64(len(reqTerms))
}
