package screen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/govcon-responder/internal/opportunity"
)

type expiredScreen struct{}

// NewExpired creates a screen that removes listings whose due date already
// passed. There is nothing left to respond to.
func NewExpired() Screen {
	return &expiredScreen{}
}

func (s *expiredScreen) Name() string { return "expired" }

func (s *expiredScreen) Disable(string) {}

func (s *expiredScreen) IsEnabled() bool { return true }

func (s *expiredScreen) Validate(*Config) error { return nil }

func (s *expiredScreen) Apply(_ context.Context, deps Deps, opps opportunity.Opportunities) (opportunity.Opportunities, Step, error) {
	initial := opps.Len()

	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}

	var (
		kept     opportunity.Opportunities
		excluded []string
	)
	for _, opp := range opps {
		if opp.DueDate.Before(now) {
			excluded = append(excluded, opp.ID())
			continue
		}
		kept = append(kept, opp)
	}

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding expired listings",
			zap.Strings("excluded_opportunities", excluded),
			zap.Int("opportunities_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: kept.Len()}, nil
}

type historyScreen struct {
	ignore   bool
	disabled bool
	reason   string
}

// NewHistory creates a screen that removes listings already processed in a
// previous run.
func NewHistory(cmd *cobra.Command) Screen {
	ignore := false
	if cmd != nil {
		flag := cmd.Flag("reprocess")
		if flag != nil && strings.EqualFold(flag.Value.String(), "true") {
			ignore = true
		}
	}
	return &historyScreen{ignore: ignore}
}

func (s *historyScreen) Name() string { return "history" }

func (s *historyScreen) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *historyScreen) IsEnabled() bool { return !s.disabled }

func (s *historyScreen) Validate(*Config) error { return nil }

func (s *historyScreen) Apply(ctx context.Context, deps Deps, opps opportunity.Opportunities) (opportunity.Opportunities, Step, error) {
	initial := opps.Len()
	if s.ignore {
		if deps.Logger != nil {
			deps.Logger.Info("ignoring processed-listing history", zap.String("reason", "reprocess flag is set"))
		}
		return opps, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	if deps.History == nil {
		return opps, Step{}, fmt.Errorf("history store is required")
	}

	seen, err := deps.History.SeenIDs(ctx)
	if err != nil {
		return opps, Step{}, fmt.Errorf("load processed history: %w", err)
	}

	kept := opps.ExcludeIDs(seen)
	dropped := initial - kept.Len()
	if deps.Logger != nil && dropped > 0 {
		deps.Logger.Info("excluding listings processed in previous runs",
			zap.Int("excluded_count", dropped),
			zap.Int("opportunities_left", kept.Len()),
		)
	}

	return kept, Step{Initial: initial, Dropped: dropped, Left: kept.Len()}, nil
}

func (s *historyScreen) Status() Status {
	details := map[string]string{
		"exclude_processed": strconv.FormatBool(!s.ignore),
	}
	reason := s.reason
	if reason == "" && s.ignore {
		reason = "skip requested via flag"
	}
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: reason, Details: details}
}

type limitScreen struct {
	limit int
}

// NewLimit creates a screen that keeps only the first configured number of
// listings, bounding LLM spend per run.
func NewLimit() Screen {
	return &limitScreen{}
}

func (s *limitScreen) Name() string { return "limit" }

func (s *limitScreen) Disable(string) {}

func (s *limitScreen) IsEnabled() bool { return true }

func (s *limitScreen) Validate(cfg *Config) error {
	s.limit = 0
	if cfg != nil {
		s.limit = cfg.MaxOpportunities
	}
	return nil
}

func (s *limitScreen) Apply(_ context.Context, deps Deps, opps opportunity.Opportunities) (opportunity.Opportunities, Step, error) {
	initial := opps.Len()
	if s.limit <= 0 || initial <= s.limit {
		return opps, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept := opps[:s.limit]
	if deps.Logger != nil {
		deps.Logger.Info("limiting listings for this run",
			zap.Int("limit", s.limit),
			zap.Int("dropped", initial-s.limit),
		)
	}

	return kept, Step{Initial: initial, Dropped: initial - s.limit, Left: kept.Len()}, nil
}

func (s *limitScreen) Status() Status {
	details := map[string]string{}
	if s.limit > 0 {
		details["max_opportunities"] = strconv.Itoa(s.limit)
	}
	return Status{Name: s.Name(), Enabled: true, Details: details}
}
