// Package decision routes every scored opportunity to skip, review or
// submit. The rule order is load-bearing: the quota and degraded checks come
// before the auto-submit check so that no configuration combination can
// bypass them.
package decision

import (
	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/match"
	"github.com/spigell/govcon-responder/internal/quota"
)

// Kind is the routing verdict for one opportunity.
type Kind string

const (
	KindSkip   Kind = "skip"
	KindReview Kind = "review"
	KindSubmit Kind = "submit"
)

// Decision is the gate's verdict with its audit reasons.
type Decision struct {
	OpportunityID string   `json:"opportunity_id"`
	Kind          Kind     `json:"kind"`
	Reasons       []string `json:"reasons,omitempty"`
}

// Config holds the gate thresholds and safety switches.
type Config struct {
	MinScore   float64
	ReviewMode bool
	AutoSubmit bool
}

// Gate applies the decision rules. A submit verdict reserves a quota slot
// atomically, so handing out more submits than the daily limit is not
// possible even under concurrent calls.
type Gate struct {
	cfg    Config
	quota  *quota.Counter
	logger *zap.Logger
}

func NewGate(cfg Config, counter *quota.Counter, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, quota: counter, logger: logger}
}

// Decide returns the verdict for one match result. First matching rule wins:
// below threshold, degraded, quota reached, manual review required, submit.
func (g *Gate) Decide(result *match.MatchResult) *Decision {
	decision := &Decision{OpportunityID: result.OpportunityID}

	switch {
	case result.Score < g.cfg.MinScore:
		decision.Kind = KindSkip
		decision.Reasons = append(decision.Reasons, "below threshold")
	case result.Degraded:
		decision.Kind = KindReview
		decision.Reasons = append(decision.Reasons, "degraded match, manual check required")
	case g.quota.Reached():
		decision.Kind = KindReview
		decision.Reasons = append(decision.Reasons, "daily quota reached")
	case g.cfg.ReviewMode || !g.cfg.AutoSubmit:
		decision.Kind = KindReview
		if g.cfg.ReviewMode {
			decision.Reasons = append(decision.Reasons, "review mode enabled")
		}
		if !g.cfg.AutoSubmit {
			decision.Reasons = append(decision.Reasons, "auto-submit disabled")
		}
	default:
		if g.quota.Acquire() {
			decision.Kind = KindSubmit
		} else {
			decision.Kind = KindReview
			decision.Reasons = append(decision.Reasons, "daily quota reached")
		}
	}

	g.logger.Debug("decision made",
		zap.String("opportunity_id", result.OpportunityID),
		zap.String("kind", string(decision.Kind)),
		zap.Strings("reasons", decision.Reasons),
	)

	return decision
}
